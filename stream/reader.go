package stream

import (
	"context"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
)

// Reader plays back the BID sequence a Writer produced, one element
// at a time. Each block is acquired from the cache on demand once the
// previous one is used up; no read is issued ahead of the consumer.
// It satisfies merge.Source[T] directly
// (Empty/Peek/Next) so it can feed a merge.Tree or extsort.Sort
// without an adapter.
type Reader[T any] struct {
	ctx       context.Context
	cache     *cache.Cache
	bids      []block.BID
	total     int
	blockSize int64
	perBlock  int

	blockIdx int
	slot     *cache.SwappableBlock
	slice    []T
	pos      int
	consumed int
	err      error
}

// NewReader constructs a Reader over bids (as produced by Writer.BIDs)
// expecting a total of total elements across them.
func NewReader[T any](ctx context.Context, c *cache.Cache, bids []block.BID, total int, blockSize int64) *Reader[T] {
	return &Reader[T]{
		ctx:       ctx,
		cache:     c,
		bids:      bids,
		total:     total,
		blockSize: blockSize,
		perBlock:  elementsPerBlock[T](blockSize),
	}
}

func (r *Reader[T]) ensureLoaded() {
	if r.err != nil || r.consumed >= r.total {
		if r.slot != nil {
			r.cache.Release(r.slot, false)
			r.slot = nil
		}
		return
	}
	if r.slot != nil && r.pos < len(r.slice) {
		return
	}
	if r.slot != nil {
		r.cache.Release(r.slot, false)
		r.slot = nil
	}
	if r.blockIdx >= len(r.bids) {
		r.err = emdisk.New("stream.Reader", emdisk.CodeInvariantFailure, "ran out of blocks before total element count was reached")
		return
	}

	bid := r.bids[r.blockIdx]
	r.blockIdx++
	slot, err := r.cache.Acquire(r.ctx, bid)
	if err != nil {
		r.err = emdisk.WrapError("stream.Reader", err)
		return
	}
	r.slot = slot
	r.slice = asSlice[T](slot.Data())
	r.pos = 0
}

// Empty reports whether every element has been consumed.
func (r *Reader[T]) Empty() bool {
	r.ensureLoaded()
	return r.err != nil || r.consumed >= r.total
}

// Peek returns the next element without consuming it. Calling Peek on
// an empty Reader is a contract violation; callers must check Empty
// first, matching merge.Source's contract.
func (r *Reader[T]) Peek() T {
	r.ensureLoaded()
	return r.slice[r.pos]
}

// Next advances past the current element.
func (r *Reader[T]) Next() {
	r.pos++
	r.consumed++
	if r.pos >= r.perBlock {
		// force ensureLoaded to roll to the next block even if this
		// one's slice happened to be shorter than perBlock
		r.pos = len(r.slice)
	}
}

// Err returns the first error encountered, if any.
func (r *Reader[T]) Err() error {
	return r.err
}

// Close releases any currently-held slot. Safe to call multiple
// times.
func (r *Reader[T]) Close() {
	if r.slot != nil {
		r.cache.Release(r.slot, false)
		r.slot = nil
	}
}
