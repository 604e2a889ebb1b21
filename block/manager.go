package block

import (
	"sync"
	"sync/atomic"

	emdisk "github.com/behrlich/go-emdisk"
)

// Backend is the subset of file.Backend the block manager needs: a
// disk it can size and grow. Declared locally (rather than importing
// the file package) so block has no dependency on file's I/O backends;
// a *file.SyncFile et al. satisfy this trivially.
type Backend interface {
	Size() int64
	SetSize(n int64) error
}

// Disk bundles one backing file with its free-extent allocator.
type Disk struct {
	Backend   Backend
	Allocator *DiskAllocator
}

// Manager is the process-facing replacement for the original library's
// block_manager singleton: constructed once from a set of disks, it
// hands out BIDs spread across them per a Strategy and reclaims freed
// ranges.
type Manager struct {
	disks []*Disk

	totalAllocation   atomic.Int64 // monotonic: bytes ever allocated
	currentAllocation atomic.Int64 // bytes currently live
	maximumAllocation atomic.Int64 // high-water mark of currentAllocation

	mu sync.Mutex
}

// NewManager constructs a Manager over the given disks, one allocator
// per disk sized from backend.Size().
func NewManager(backends []Backend, autogrow []bool) *Manager {
	m := &Manager{disks: make([]*Disk, len(backends))}
	for i, b := range backends {
		ag := false
		if i < len(autogrow) {
			ag = autogrow[i]
		}
		backend := b
		idx := i
		alloc := NewDiskAllocator(idx, b.Size(), ag, func(newSize int64) error {
			return backend.SetSize(newSize)
		})
		m.disks[i] = &Disk{Backend: b, Allocator: alloc}
	}
	return m
}

// NumDisks returns the number of configured disks.
func (m *Manager) NumDisks() int {
	return len(m.disks)
}

// NewBlocks allocates n BIDs of the given blockSize, spreading them
// across disks per strategy starting at offsetHint, and returns them in
// the original per-index order. Either all n BIDs are produced, or none
// are and an error is returned.
func (m *Manager) NewBlocks(strategy Strategy, n int, blockSize int64, offsetHint int) ([]BID, error) {
	if n == 0 {
		return nil, nil
	}
	numDisks := len(m.disks)
	if numDisks == 0 {
		return nil, emdisk.New("block.Manager.NewBlocks", emdisk.CodeStateViolation, "no disks configured")
	}

	perDisk := make(map[int][]int) // disk index -> positions in the output needing a block
	for i := 0; i < n; i++ {
		d := strategy.Assign(offsetHint+i, numDisks, nil)
		perDisk[d] = append(perDisk[d], i)
	}

	out := make([]BID, n)

	for d, positions := range perDisk {
		sizes := make([]int64, len(positions))
		for i := range sizes {
			sizes[i] = blockSize
		}
		positions := positions
		disk := d
		err := m.disks[d].Allocator.NewBlocks(sizes, func(i int, offset int64) {
			out[positions[i]] = BID{Backend: disk, Offset: offset, Size: blockSize}
		})
		if err != nil {
			// roll back every disk we already succeeded on so that a
			// bulk NewBlocks call never exposes a partial result.
			m.rollback(out, perDisk)
			return nil, emdisk.WrapError("block.Manager.NewBlocks", err)
		}
	}

	total := blockSize * int64(n)
	m.totalAllocation.Add(total)
	cur := m.currentAllocation.Add(total)
	for {
		max := m.maximumAllocation.Load()
		if cur <= max || m.maximumAllocation.CompareAndSwap(max, cur) {
			break
		}
	}
	return out, nil
}

// rollback frees every BID this call already produced, including the
// halves the failing disk allocated before it failed, keeping "all or
// nothing" semantics for a bulk NewBlocks call.
func (m *Manager) rollback(out []BID, perDisk map[int][]int) {
	for d, positions := range perDisk {
		for _, p := range positions {
			b := out[p]
			if b.Size > 0 {
				_ = m.disks[d].Allocator.Free(b.Offset, b.Size)
			}
		}
	}
}

// DeleteBlocks frees every BID's range on its owning disk. Unmanaged
// BIDs are no-ops.
func (m *Manager) DeleteBlocks(bids []BID) error {
	var total int64
	for _, b := range bids {
		if b.Backend == Unmanaged {
			continue
		}
		if b.Backend < 0 || b.Backend >= len(m.disks) {
			return emdisk.New("block.Manager.DeleteBlocks", emdisk.CodeStateViolation, "bid references unknown disk")
		}
		if err := m.disks[b.Backend].Allocator.Free(b.Offset, b.Size); err != nil {
			return emdisk.WrapError("block.Manager.DeleteBlocks", err)
		}
		total += b.Size
	}
	m.currentAllocation.Add(-total)
	return nil
}

// Usage is the accounting snapshot required by the manager's public
// surface: total ever allocated, currently live, high-water mark, and
// aggregate free/total bytes across every disk.
type Usage struct {
	TotalAllocation   int64
	CurrentAllocation int64
	MaximumAllocation int64
	FreeBytes         int64
	TotalBytes        int64
}

// Usage returns a point-in-time accounting snapshot.
func (m *Manager) Usage() Usage {
	var free, total int64
	for _, d := range m.disks {
		free += d.Allocator.FreeBytes()
		total += d.Allocator.TotalBytes()
	}
	return Usage{
		TotalAllocation:   m.totalAllocation.Load(),
		CurrentAllocation: m.currentAllocation.Load(),
		MaximumAllocation: m.maximumAllocation.Load(),
		FreeBytes:         free,
		TotalBytes:        total,
	}
}
