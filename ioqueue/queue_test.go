package ioqueue

import (
	"context"
	"testing"
	"time"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/file"
	"github.com/stretchr/testify/require"
)

func TestDiskQueueReadWriteRoundTrip(t *testing.T) {
	backend := file.NewMemFile(4096)
	stats := emdisk.NewStats()
	q := NewDiskQueue(2, stats)
	defer q.Close()

	ctx := context.Background()
	data := []byte("queued write")
	wh, err := q.Submit(ctx, backend, true, data, 0)
	require.NoError(t, err)
	n, err := wh.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	rh, err := q.Submit(ctx, backend, false, out, 0)
	require.NoError(t, err)
	n, err = rh.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)

	snap := stats.Snapshot()
	require.Equal(t, uint64(1), snap.Reads)
	require.Equal(t, uint64(1), snap.Writes)
}

func TestDiskQueueCancelBeforeExecution(t *testing.T) {
	backend := file.NewMemFile(4096)
	q := NewDiskQueue(1, nil)
	defer q.Close()

	h, err := q.Submit(context.Background(), backend, false, make([]byte, 4), 0)
	require.NoError(t, err)
	canceled := q.Cancel(h)
	_ = canceled // scheduling is nondeterministic with workers running; assert only the handle resolves below

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = h.Wait(ctx)
	// either genuinely canceled, or the lone worker already completed it
	if canceled {
		require.Error(t, err)
	}
}

func TestDiskQueueWaitAllAndWaitAny(t *testing.T) {
	backend := file.NewMemFile(4096)
	q := NewDiskQueue(4, nil)
	defer q.Close()

	ctx := context.Background()
	var handles []*RequestHandle
	for i := 0; i < 4; i++ {
		h, err := q.Submit(ctx, backend, true, []byte("x"), int64(i))
		require.NoError(t, err)
		handles = append(handles, h)
	}
	require.NoError(t, WaitAll(ctx, handles))

	var reads []*RequestHandle
	for i := 0; i < 3; i++ {
		h, err := q.Submit(ctx, backend, false, make([]byte, 1), int64(i))
		require.NoError(t, err)
		reads = append(reads, h)
	}
	idx, n, err := WaitAny(ctx, reads)
	require.NoError(t, err)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, 1, n)
}

func TestDiskQueuesRegistryPerDisk(t *testing.T) {
	dq := NewDiskQueues(1, nil)
	defer dq.CloseAll()

	q0 := dq.For(0)
	q0Again := dq.For(0)
	require.Same(t, q0, q0Again)

	q1 := dq.For(1)
	require.NotSame(t, q0, q1)
}
