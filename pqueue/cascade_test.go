package pqueue

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
	"github.com/behrlich/go-emdisk/file"
	"github.com/behrlich/go-emdisk/ioqueue"
	"github.com/stretchr/testify/require"
)

func newCascadeHarness(t *testing.T, numDisks, numSlots int) (*block.Manager, *cache.Cache) {
	t.Helper()
	backends := make([]file.Backend, numDisks)
	blockBackends := make([]block.Backend, numDisks)
	for i := range backends {
		mf := file.NewMemFile(4 << 20)
		backends[i] = mf
		blockBackends[i] = mf
	}
	manager := block.NewManager(blockBackends, make([]bool, numDisks))
	queues := ioqueue.NewDiskQueues(2, emdisk.NewStats())
	c := cache.NewCache(backends, queues, numSlots, 4096, cache.NewLRU())
	return manager, c
}

func lessInt(a, b int) bool { return a < b }

func TestCascadePushPopSorted(t *testing.T) {
	manager, c := newCascadeHarness(t, 2, 16)
	ctx := context.Background()
	cascade := NewCascade[int](ctx, manager, c, lessInt, 1<<30, Config{Arity: 3, BufferCap: 8, BlockSize: 4096})

	r := rand.New(rand.NewSource(3))
	values := make([]int, 200)
	for i := range values {
		values[i] = r.Intn(1000)
		require.NoError(t, cascade.Push(values[i]))
	}

	var got []int
	for !cascade.Empty() {
		v, err := cascade.Pop()
		require.NoError(t, err)
		got = append(got, v)
	}

	want := append([]int(nil), values...)
	sort.Ints(want)
	require.Equal(t, want, got)
}

func TestCascadeTopDoesNotConsume(t *testing.T) {
	manager, c := newCascadeHarness(t, 1, 8)
	ctx := context.Background()
	cascade := NewCascade[int](ctx, manager, c, lessInt, 1<<30, Config{Arity: 2, BufferCap: 4, BlockSize: 4096})

	for _, v := range []int{5, 1, 3} {
		require.NoError(t, cascade.Push(v))
	}

	top1, err := cascade.Top()
	require.NoError(t, err)
	top2, err := cascade.Top()
	require.NoError(t, err)
	require.Equal(t, top1, top2)
	require.Equal(t, 1, top1)

	v, err := cascade.Pop()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestCascadeEmptyPopErrors(t *testing.T) {
	manager, c := newCascadeHarness(t, 1, 4)
	ctx := context.Background()
	cascade := NewCascade[int](ctx, manager, c, lessInt, 1<<30, Config{})
	require.True(t, cascade.Empty())
	_, err := cascade.Pop()
	require.Error(t, err)
}

func TestCascadePushAfterRefillPreservesOrder(t *testing.T) {
	// Regression: Pop/Top triggers refillLocked, which permanently
	// drains the buffer/level prefix that backs the cached delete
	// buffer. A subsequent Push used to discard that cache outright
	// (losing the already-consumed elements) instead of merging into
	// it, which would have broken both total-count conservation and
	// sortedness for any interleaved push/pop sequence.
	manager, c := newCascadeHarness(t, 1, 16)
	ctx := context.Background()
	cascade := NewCascade[int](ctx, manager, c, lessInt, 1<<30, Config{Arity: 2, BufferCap: 4, BlockSize: 4096})

	pushed := []int{10, 20, 30, 40}
	for _, v := range pushed {
		require.NoError(t, cascade.Push(v))
	}

	// force a refill: populates and caches the delete buffer.
	top, err := cascade.Top()
	require.NoError(t, err)
	require.Equal(t, 10, top)

	// push a value that must be spliced ahead of some already-cached
	// elements, and one that sorts after all of them.
	require.NoError(t, cascade.Push(15))
	require.NoError(t, cascade.Push(1000))
	pushed = append(pushed, 15, 1000)

	var got []int
	for !cascade.Empty() {
		v, err := cascade.Pop()
		require.NoError(t, err)
		got = append(got, v)
	}

	want := append([]int(nil), pushed...)
	sort.Ints(want)
	require.Equal(t, want, got)

	sumPushed, sumPopped := 0, 0
	for _, v := range pushed {
		sumPushed += v
	}
	for _, v := range got {
		sumPopped += v
	}
	require.Equal(t, sumPushed, sumPopped)
}

func TestCascadeCascadesAcrossLevels(t *testing.T) {
	manager, c := newCascadeHarness(t, 2, 32)
	ctx := context.Background()
	// small arity and buffer cap forces multiple cascades upward
	cascade := NewCascade[int](ctx, manager, c, lessInt, 1<<30, Config{Arity: 2, BufferCap: 4, BlockSize: 4096})

	values := make([]int, 100)
	for i := range values {
		values[i] = 100 - i
		require.NoError(t, cascade.Push(values[i]))
	}

	var got []int
	for !cascade.Empty() {
		v, err := cascade.Pop()
		require.NoError(t, err)
		got = append(got, v)
	}
	want := append([]int(nil), values...)
	sort.Ints(want)
	require.Equal(t, want, got)
	require.True(t, len(cascade.levels) >= 2)
}
