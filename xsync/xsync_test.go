package xsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSemaphoreWaitSignal(t *testing.T) {
	s := NewSemaphore(1)
	require.Equal(t, int64(0), s.Wait())

	done := make(chan int64, 1)
	go func() {
		done <- s.Wait()
	}()

	time.Sleep(10 * time.Millisecond)
	s.Signal1()

	select {
	case v := <-done:
		require.Equal(t, int64(0), v)
	case <-time.After(time.Second):
		t.Fatal("semaphore wait did not unblock")
	}
}

func TestOnOffSwitch(t *testing.T) {
	sw := NewOnOffSwitch()
	require.False(t, sw.IsOn())

	done := make(chan struct{})
	go func() {
		sw.WaitForOn()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	sw.On()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForOn did not unblock after On")
	}
	require.True(t, sw.IsOn())

	sw.Off()
	require.False(t, sw.IsOn())
}

func TestRefCounted(t *testing.T) {
	r := NewRefCounted(42)
	require.Equal(t, int64(1), r.Count())

	r.Acquire()
	require.Equal(t, int64(2), r.Count())
	require.Equal(t, 42, r.Value())

	require.False(t, r.Release())
	require.True(t, r.Release())
	require.Equal(t, int64(0), r.Count())
}

func TestAlignedAllocIsPageAligned(t *testing.T) {
	buf := AlignedAlloc(4096)
	require.Len(t, buf, 4096)

	allocator := NewAlignedAllocator(4096)
	batch := allocator.AllocBatch(4)
	require.Len(t, batch, 4)
	for _, b := range batch {
		require.Len(t, b, 4096)
	}
}

func TestWinnerTree(t *testing.T) {
	keys := []int{5, 3, 8, 1, 9, 2}
	wt := NewWinnerTree(len(keys), func(a, b int) bool { return a < b })
	for i, k := range keys {
		wt.Set(i, k)
	}
	idx, v := wt.Top()
	require.Equal(t, 1, v)
	require.Equal(t, 3, idx)

	wt.Set(3, 100)
	idx, v = wt.Top()
	require.Equal(t, 2, v)
	require.Equal(t, 5, idx)
}
