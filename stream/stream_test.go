package stream

import (
	"context"
	"testing"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
	"github.com/behrlich/go-emdisk/file"
	"github.com/behrlich/go-emdisk/ioqueue"
	"github.com/stretchr/testify/require"
)

func newHarness(t *testing.T, blockSize int64, numDisks, numSlots int) (*cache.Cache, *block.Manager) {
	t.Helper()
	backends := make([]file.Backend, numDisks)
	blockBackends := make([]block.Backend, numDisks)
	for i := range backends {
		mf := file.NewMemFile(1 << 20)
		backends[i] = mf
		blockBackends[i] = mf
	}
	manager := block.NewManager(blockBackends, make([]bool, numDisks))
	queues := ioqueue.NewDiskQueues(2, emdisk.NewStats())
	c := cache.NewCache(backends, queues, numSlots, blockSize, cache.NewLRU())
	return c, manager
}

func TestWriterReaderRoundTrip(t *testing.T) {
	c, m := newHarness(t, 4096, 2, 4)
	ctx := context.Background()

	w := NewWriter[int64](ctx, c, m, block.Striping, 4096)
	values := make([]int64, 500)
	for i := range values {
		values[i] = int64(i * 7)
		require.NoError(t, w.Put(values[i]))
	}
	require.NoError(t, w.Close())

	r := NewReader[int64](ctx, c, w.BIDs(), w.Count(), 4096)
	out, err := Materialize(r)
	require.NoError(t, err)
	require.Equal(t, values, out)
}

func TestWriterReaderEmptyStream(t *testing.T) {
	c, _ := newHarness(t, 4096, 1, 2)
	ctx := context.Background()
	r := NewReader[int64](ctx, c, nil, 0, 4096)
	out, err := Materialize(r)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestReaderSatisfiesSourceShape(t *testing.T) {
	c, m := newHarness(t, 4096, 1, 4)
	ctx := context.Background()

	w := NewWriter[int32](ctx, c, m, block.Striping, 4096)
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Put(int32(i)))
	}
	require.NoError(t, w.Close())

	r := NewReader[int32](ctx, c, w.BIDs(), w.Count(), 4096)
	defer r.Close()
	var got []int32
	for !r.Empty() {
		got = append(got, r.Peek())
		r.Next()
	}
	require.Len(t, got, 10)
	for i, v := range got {
		require.Equal(t, int32(i), v)
	}
}
