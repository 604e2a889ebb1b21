package cache

import (
	"context"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/file"
	"github.com/behrlich/go-emdisk/ioqueue"
	"github.com/behrlich/go-emdisk/xsync"
)

// Cache is a fixed pool of block-sized RAM slots, each a
// SwappableBlock, backed by BID-addressed storage reached through an
// ioqueue.DiskQueues registry. Policy decisions (which slot to evict)
// run under Cache's own lock; the resulting I/O (writeback of a dirty
// victim, load of the newly requested BID) happens after the lock is
// released, per the "policy under a short critical section, I/O
// outside it" rule.
type Cache struct {
	mu    sync.Mutex
	slots []*SwappableBlock
	byBID map[block.BID]int
	free  []int

	policy    Policy
	backends  []file.Backend
	queues    *ioqueue.DiskQueues
	blockSize int64
}

// NewCache allocates numSlots aligned, blockSize-byte buffers and
// wraps each in a SwappableBlock. backends is indexed by BID.Backend
// and is what Cache actually issues reads/writes against; it is kept
// separate from block.Manager's own Backend interface since the
// manager only needs Size/SetSize and deliberately knows nothing about
// file.Backend's I/O methods.
func NewCache(backends []file.Backend, queues *ioqueue.DiskQueues, numSlots int, blockSize int64, policy Policy) *Cache {
	alloc := xsync.NewAlignedAllocator(int(blockSize))
	bufs := alloc.AllocBatch(numSlots)

	c := &Cache{
		slots:     make([]*SwappableBlock, numSlots),
		byBID:     make(map[block.BID]int),
		free:      make([]int, numSlots),
		policy:    policy,
		backends:  backends,
		queues:    queues,
		blockSize: blockSize,
	}
	for i := 0; i < numSlots; i++ {
		c.slots[i] = newSwappableBlock(bufs[i])
		c.free[i] = numSlots - 1 - i // pop from the back, order doesn't matter
	}
	return c
}

// NumSlots returns the size of the slot pool.
func (c *Cache) NumSlots() int {
	return len(c.slots)
}

// Acquire pins and returns the slot mirroring bid, loading it from
// storage first if it is not already resident. The caller must call
// Release when done.
func (c *Cache) Acquire(ctx context.Context, bid block.BID) (*SwappableBlock, error) {
	c.mu.Lock()
	if idx, ok := c.byBID[bid]; ok {
		slot := c.slots[idx]
		slot.pin()
		c.policy.Touch(idx)
		c.mu.Unlock()
		return slot, nil
	}

	idx, victimBID, needsWriteback, slot, err := c.allocateSlotLocked(bid)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	if needsWriteback {
		if err := c.writeback(ctx, slot, victimBID); err != nil {
			slot.unpin()
			return nil, err
		}
	}

	if bid.Backend != block.Unmanaged {
		h, err := c.queues.For(bid.Backend).Submit(ctx, c.backends[bid.Backend], false, slot.data, bid.Offset)
		if err != nil {
			slot.unpin()
			return nil, err
		}
		if _, err := h.Wait(ctx); err != nil {
			slot.unpin()
			return nil, emdisk.WrapError("cache.Cache.Acquire", err)
		}
		slot.setState(CleanInRAM)
	} else {
		for i := range slot.data {
			slot.data[i] = 0
		}
		slot.setState(Uninitialized)
	}

	c.mu.Lock()
	c.policy.Touch(idx)
	c.mu.Unlock()
	return slot, nil
}

// allocateSlotLocked finds a free slot, or asks the policy to evict an
// unpinned resident one, and reassigns it to bid. It must be called
// with c.mu held and returns with the slot already pinned (but
// c.mu released by the caller before any I/O).
func (c *Cache) allocateSlotLocked(bid block.BID) (idx int, victimBID block.BID, needsWriteback bool, slot *SwappableBlock, err error) {
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
		slot = c.slots[idx]
		slot.pin()
		slot.setBID(bid)
		c.byBID[bid] = idx
		return idx, block.BID{}, false, slot, nil
	}

	var candidates []int
	for i, s := range c.slots {
		if !s.IsPinned() {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return 0, block.BID{}, false, nil, emdisk.New("cache.Cache.Acquire", emdisk.CodeStateViolation, "no unpinned slot available to evict")
	}

	idx = c.policy.Evict(candidates, func(s int) block.BID { return c.slots[s].BID() })
	if idx < 0 {
		idx = candidates[0]
	}
	slot = c.slots[idx]
	victimBID = slot.BID()
	needsWriteback = slot.State() == DirtyInRAM

	delete(c.byBID, victimBID)
	c.policy.Remove(idx)
	slot.pin()
	slot.setBID(bid)
	c.byBID[bid] = idx
	return idx, victimBID, needsWriteback, slot, nil
}

func (c *Cache) writeback(ctx context.Context, slot *SwappableBlock, victimBID block.BID) error {
	if victimBID.Backend == block.Unmanaged {
		return nil
	}
	h, err := c.queues.For(victimBID.Backend).Submit(ctx, c.backends[victimBID.Backend], true, slot.data, victimBID.Offset)
	if err != nil {
		return err
	}
	if _, err := h.Wait(ctx); err != nil {
		return emdisk.WrapError("cache.Cache.writeback", err)
	}
	return nil
}

// Release unpins slot, marking it dirty first if the caller modified
// its data.
func (c *Cache) Release(slot *SwappableBlock, dirty bool) {
	if dirty {
		slot.markDirty()
	}
	slot.unpin()
}

// Flush writes back every currently-dirty, unpinned slot.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	type victim struct {
		slot *SwappableBlock
		bid  block.BID
	}
	var dirty []victim
	for _, s := range c.slots {
		if s.State() == DirtyInRAM && !s.IsPinned() {
			dirty = append(dirty, victim{slot: s, bid: s.BID()})
		}
	}
	c.mu.Unlock()

	for _, v := range dirty {
		if err := c.writeback(ctx, v.slot, v.bid); err != nil {
			return err
		}
		v.slot.setState(CleanInRAM)
	}
	return nil
}

// ExtractExternal writes slot's current contents back to its BID if
// the slot is dirty, whether or not it is pinned, and returns that BID.
// Unlike Flush (which only drains already-unpinned dirty slots during
// housekeeping), this lets a caller holding a pin hand the BID to
// another collaborator (e.g. record it in a container's index) with
// the guarantee that the external copy is now up to date.
func (c *Cache) ExtractExternal(ctx context.Context, slot *SwappableBlock) (block.BID, error) {
	bid := slot.BID()
	if slot.State() == DirtyInRAM {
		if err := c.writeback(ctx, slot, bid); err != nil {
			return block.BID{}, err
		}
		slot.setState(CleanInRAM)
	}
	return bid, nil
}

// Prefetch issues reads for every BID a PrefetchLRU policy's
// NextToStage reports, ahead of demand. It is a no-op for any other
// policy.
func (c *Cache) Prefetch(ctx context.Context, pred Prediction) {
	pp, ok := c.policy.(*PrefetchLRU)
	if !ok {
		return
	}
	pp.SetPrediction(pred)
	for _, bid := range pp.NextToStage() {
		c.mu.Lock()
		_, resident := c.byBID[bid]
		c.mu.Unlock()
		if resident {
			continue
		}
		go func(bid block.BID) {
			slot, err := c.Acquire(ctx, bid)
			if err != nil {
				return
			}
			c.Release(slot, false)
		}(bid)
	}
}
