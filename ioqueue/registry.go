package ioqueue

import (
	"context"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
)

// DiskQueues is a registry of one DiskQueue per disk, keyed by disk
// index, mirroring STXXL's per-disk queue lookup in its block manager.
type DiskQueues struct {
	mu      sync.Mutex
	queues  map[int]*DiskQueue
	workers int
	stats   *emdisk.Stats
}

// NewDiskQueues creates a registry that lazily starts a DiskQueue with
// workersPerDisk workers the first time a disk index is referenced.
func NewDiskQueues(workersPerDisk int, stats *emdisk.Stats) *DiskQueues {
	return &DiskQueues{
		queues:  make(map[int]*DiskQueue),
		workers: workersPerDisk,
		stats:   stats,
	}
}

// For returns the DiskQueue for disk, creating it on first use.
func (d *DiskQueues) For(disk int) *DiskQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[disk]
	if !ok {
		q = NewDiskQueue(d.workers, d.stats)
		d.queues[disk] = q
	}
	return q
}

// CloseAll closes every queue in the registry.
func (d *DiskQueues) CloseAll() {
	d.mu.Lock()
	queues := make([]*DiskQueue, 0, len(d.queues))
	for _, q := range d.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()
	for _, q := range queues {
		q.Close()
	}
}

// WaitAll blocks until every handle completes or ctx is done,
// returning the first error encountered (if any); all handles are
// still waited on even after an error so none are leaked.
func WaitAll(ctx context.Context, handles []*RequestHandle) error {
	var first error
	for _, h := range handles {
		if _, err := h.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WaitAny blocks until the first of handles completes (or ctx is
// done) and returns its index, byte count, and error.
func WaitAny(ctx context.Context, handles []*RequestHandle) (int, int, error) {
	type result struct {
		idx int
		n   int
		err error
	}
	ch := make(chan result, len(handles))
	for i, h := range handles {
		i, h := i, h
		go func() {
			n, err := h.Wait(ctx)
			ch <- result{idx: i, n: n, err: err}
		}()
	}
	r := <-ch
	return r.idx, r.n, r.err
}
