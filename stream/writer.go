package stream

import (
	"context"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
)

// Writer accumulates T values into cache-managed blocks, allocating a
// fresh BID from manager each time the current block fills, and
// records the BID sequence so a Reader can play it back later. It is
// the write side of STXXL's stream layer, generalized to any
// fixed-layout element type via the typed-block reinterpretation in
// typedblock.go.
type Writer[T any] struct {
	ctx       context.Context
	cache     *cache.Cache
	manager   *block.Manager
	strategy  block.Strategy
	blockSize int64
	perBlock  int

	cur   *cache.SwappableBlock
	pos   int
	bids  []block.BID
	count int
	err   error
}

// NewWriter constructs a Writer that allocates blockSize-byte blocks
// from manager per strategy, staging them through c before they are
// durably written.
func NewWriter[T any](ctx context.Context, c *cache.Cache, manager *block.Manager, strategy block.Strategy, blockSize int64) *Writer[T] {
	return &Writer[T]{
		ctx:       ctx,
		cache:     c,
		manager:   manager,
		strategy:  strategy,
		blockSize: blockSize,
		perBlock:  elementsPerBlock[T](blockSize),
	}
}

// Put appends v to the stream, transparently rolling over to a freshly
// allocated block when the current one fills.
func (w *Writer[T]) Put(v T) error {
	if w.err != nil {
		return w.err
	}
	if w.cur == nil {
		if err := w.rollover(); err != nil {
			w.err = err
			return err
		}
	}

	slice := asSlice[T](w.cur.Data())
	slice[w.pos] = v
	w.pos++
	w.count++

	if w.pos == w.perBlock {
		w.cache.Release(w.cur, true)
		w.cur = nil
		w.pos = 0
	}
	return nil
}

func (w *Writer[T]) rollover() error {
	bids, err := w.manager.NewBlocks(w.strategy, 1, w.blockSize, len(w.bids))
	if err != nil {
		return emdisk.WrapError("stream.Writer.Put", err)
	}
	bid := bids[0]
	slot, err := w.cache.Acquire(w.ctx, bid)
	if err != nil {
		return emdisk.WrapError("stream.Writer.Put", err)
	}
	w.cur = slot
	w.bids = append(w.bids, bid)
	return nil
}

// Close flushes any partially-filled final block. After Close, BIDs
// and Count report the complete written sequence.
func (w *Writer[T]) Close() error {
	if w.cur != nil {
		w.cache.Release(w.cur, true)
		w.cur = nil
	}
	return w.err
}

// BIDs returns the sequence of blocks this writer allocated, in
// write order, for handing to NewReader.
func (w *Writer[T]) BIDs() []block.BID {
	return w.bids
}

// Count returns the total number of elements written so far.
func (w *Writer[T]) Count() int {
	return w.count
}
