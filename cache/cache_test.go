package cache

import (
	"context"
	"testing"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/file"
	"github.com/behrlich/go-emdisk/ioqueue"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, numSlots int, policy Policy) (*Cache, []file.Backend) {
	t.Helper()
	backends := []file.Backend{file.NewMemFile(1 << 20)}
	queues := ioqueue.NewDiskQueues(1, emdisk.NewStats())
	return NewCache(backends, queues, numSlots, 4096, policy), backends
}

func TestCacheAcquireUnmanagedZeroFills(t *testing.T) {
	c, _ := newTestCache(t, 2, NewLRU())
	slot, err := c.Acquire(context.Background(), block.BID{Backend: block.Unmanaged})
	require.NoError(t, err)
	require.Equal(t, Uninitialized, slot.State())
	for _, b := range slot.Data() {
		require.Zero(t, b)
	}
	c.Release(slot, false)
}

func TestCacheRoundTripsThroughBackend(t *testing.T) {
	c, backends := newTestCache(t, 2, NewLRU())
	ctx := context.Background()
	bid := block.BID{Backend: 0, Offset: 0, Size: 4096}

	slot, err := c.Acquire(ctx, bid)
	require.NoError(t, err)
	copy(slot.Data(), []byte("cached bytes"))
	c.Release(slot, true)

	require.NoError(t, c.Flush(ctx))

	out := make([]byte, 12)
	_, err = backends[0].ReadAt(ctx, out, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("cached bytes"), out)
}

func TestCacheEvictsWhenFull(t *testing.T) {
	c, _ := newTestCache(t, 1, NewLRU())
	ctx := context.Background()

	s1, err := c.Acquire(ctx, block.BID{Backend: 0, Offset: 0, Size: 4096})
	require.NoError(t, err)
	c.Release(s1, false)

	s2, err := c.Acquire(ctx, block.BID{Backend: 0, Offset: 4096, Size: 4096})
	require.NoError(t, err)
	require.Equal(t, 1, c.NumSlots())
	c.Release(s2, false)
}

func TestCacheAcquireFailsWhenAllSlotsPinned(t *testing.T) {
	c, _ := newTestCache(t, 1, NewLRU())
	ctx := context.Background()

	s1, err := c.Acquire(ctx, block.BID{Backend: 0, Offset: 0, Size: 4096})
	require.NoError(t, err)
	defer c.Release(s1, false)

	_, err = c.Acquire(ctx, block.BID{Backend: 0, Offset: 4096, Size: 4096})
	require.Error(t, err)
}

func TestLFDEvictsFarthestFutureUse(t *testing.T) {
	bidA := block.BID{Backend: 0, Offset: 0, Size: 4096}
	bidB := block.BID{Backend: 0, Offset: 4096, Size: 4096}
	pred := Prediction{bidA, bidB, bidA} // A used sooner and again, B used once, farther than A's first use is from A's second

	lfd := NewLFD(pred)
	bidOf := map[int]block.BID{0: bidA, 1: bidB}
	victim := lfd.Evict([]int{0, 1}, func(s int) block.BID { return bidOf[s] })
	require.Equal(t, 1, victim, "B's only future use (index 1) is farther than A's nearest use (index 0)")
}
