// Package pqueue implements an external priority queue as a cascade of
// merge levels, the Go analogue of original_source's priority_queue.h
// cascade (loser-tree levels of growing arity, an insertion buffer, and
// a delete buffer that caches the current smallest prefix so repeated
// Pop calls are cheap). It deliberately exposes only Push/Top/Pop/Empty:
// a general-purpose container facade is out of scope.
package pqueue

import (
	"context"
	"slices"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
	"github.com/behrlich/go-emdisk/merge"
	"github.com/behrlich/go-emdisk/stream"
)

const defaultRefillChunk = 64

// Cascade is an external priority queue over T. Pushes accumulate into
// an in-memory insertion buffer; once the buffer fills it is sorted and
// spilled to disk as a level-0 run. Once a level accumulates Arity runs
// they are merged into a single run and promoted to the next level,
// cascading arbitrarily high as the queue grows.
type Cascade[T any] struct {
	mu sync.Mutex

	ctx       context.Context
	manager   *block.Manager
	cache     *cache.Cache
	less      merge.Less[T]
	sentinel  T
	blockSize int64
	strategy  block.Strategy

	arity     int
	bufferCap int
	buffer    []T

	levels [][]*stream.Reader[T]

	deleteBuf []T
}

// Config configures a Cascade.
type Config struct {
	Arity     int // runs per level before cascading upward; defaults to 4
	BufferCap int // insertion-buffer capacity before it spills; defaults to 1024
	BlockSize int64
	Strategy  block.Strategy
}

// NewCascade builds a Cascade backed by manager and c, comparing
// elements with less and using sentinel as the merge ceiling (an
// element no real element compares greater than).
func NewCascade[T any](ctx context.Context, manager *block.Manager, c *cache.Cache, less merge.Less[T], sentinel T, cfg Config) *Cascade[T] {
	arity := cfg.Arity
	if arity <= 0 {
		arity = 4
	}
	bufCap := cfg.BufferCap
	if bufCap <= 0 {
		bufCap = 1024
	}
	blockSize := cfg.BlockSize
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &Cascade[T]{
		ctx:       ctx,
		manager:   manager,
		cache:     c,
		less:      less,
		sentinel:  sentinel,
		blockSize: blockSize,
		strategy:  cfg.Strategy,
		arity:     arity,
		bufferCap: bufCap,
	}
}

// Push inserts v.
func (c *Cascade[T]) Push(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// refillLocked already permanently consumed the buffer/level prefix
	// that produced c.deleteBuf, so it cannot simply be discarded: a v
	// that sorts before the last cached element is spliced into the
	// cached prefix in place; any other v (no smaller than every cached
	// element) is safe to defer to the ordinary insertion buffer,
	// since the next refill will correctly order it against whatever
	// remains in the levels.
	if n := len(c.deleteBuf); n > 0 && c.less(v, c.deleteBuf[n-1]) {
		idx, _ := slices.BinarySearchFunc(c.deleteBuf, v, cmpFunc(c.less))
		c.deleteBuf = slices.Insert(c.deleteBuf, idx, v)
		return nil
	}
	c.buffer = append(c.buffer, v)
	if len(c.buffer) >= c.bufferCap {
		return c.flushBufferLocked()
	}
	return nil
}

func (c *Cascade[T]) flushBufferLocked() error {
	if len(c.buffer) == 0 {
		return nil
	}
	slices.SortFunc(c.buffer, cmpFunc(c.less))
	w := stream.NewWriter[T](c.ctx, c.cache, c.manager, c.strategy, c.blockSize)
	for _, v := range c.buffer {
		if err := w.Put(v); err != nil {
			return emdisk.WrapError("pqueue.Cascade", err)
		}
	}
	if err := w.Close(); err != nil {
		return emdisk.WrapError("pqueue.Cascade", err)
	}
	c.buffer = c.buffer[:0]
	c.ensureLevel(0)
	c.levels[0] = append(c.levels[0], stream.NewReader[T](c.ctx, c.cache, w.BIDs(), w.Count(), c.blockSize))
	return c.cascadeLocked(0)
}

func (c *Cascade[T]) ensureLevel(i int) {
	for len(c.levels) <= i {
		c.levels = append(c.levels, nil)
	}
}

// cascadeLocked merges level i's runs into one and promotes it to level
// i+1 once level i has accumulated Arity runs, recursing upward as far
// as the merge chain reaches.
func (c *Cascade[T]) cascadeLocked(i int) error {
	if i >= len(c.levels) || len(c.levels[i]) < c.arity {
		return nil
	}
	srcs := make([]merge.Source[T], len(c.levels[i]))
	for j, r := range c.levels[i] {
		srcs[j] = r
	}
	tree := merge.NewStable[T](srcs, c.less, c.sentinel)
	w := stream.NewWriter[T](c.ctx, c.cache, c.manager, c.strategy, c.blockSize)
	for {
		v, ok := tree.Step()
		if !ok {
			break
		}
		if err := w.Put(v); err != nil {
			return emdisk.WrapError("pqueue.Cascade", err)
		}
	}
	if err := w.Close(); err != nil {
		return emdisk.WrapError("pqueue.Cascade", err)
	}
	c.levels[i] = nil
	c.ensureLevel(i + 1)
	c.levels[i+1] = append(c.levels[i+1], stream.NewReader[T](c.ctx, c.cache, w.BIDs(), w.Count(), c.blockSize))
	return c.cascadeLocked(i + 1)
}

// refillLocked rebuilds the delete buffer by merging the sorted
// insertion buffer with every level's live run readers, draining a
// fixed-size prefix. Because the level readers are the actual
// persistent Reader objects (not copies), this permanently consumes
// that prefix from them; rebuilding the scheduling Tree on every
// refill is cheap and does not re-read anything.
func (c *Cascade[T]) refillLocked() error {
	if len(c.deleteBuf) > 0 {
		return nil
	}
	slices.SortFunc(c.buffer, cmpFunc(c.less))
	bufSrc := &sliceSource[T]{data: c.buffer}

	srcs := []merge.Source[T]{bufSrc}
	for _, lvl := range c.levels {
		for _, r := range lvl {
			if !r.Empty() {
				srcs = append(srcs, r)
			}
		}
	}
	if bufSrc.Empty() && len(srcs) == 1 {
		return nil
	}

	tree := merge.NewStable[T](srcs, c.less, c.sentinel)
	out := tree.Advance(defaultRefillChunk)
	c.buffer = c.buffer[bufSrc.pos:]
	c.deleteBuf = out
	return nil
}

// Empty reports whether the cascade currently holds no elements.
func (c *Cascade[T]) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deleteBuf) > 0 || len(c.buffer) > 0 {
		return false
	}
	for _, lvl := range c.levels {
		for _, r := range lvl {
			if !r.Empty() {
				return false
			}
		}
	}
	return true
}

// Top returns the smallest element without removing it.
func (c *Cascade[T]) Top() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peekLocked()
}

// Pop removes and returns the smallest element.
func (c *Cascade[T]) Pop() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.peekLocked()
	if err != nil {
		return v, err
	}
	c.deleteBuf = c.deleteBuf[1:]
	return v, nil
}

func (c *Cascade[T]) peekLocked() (T, error) {
	var zero T
	if err := c.refillLocked(); err != nil {
		return zero, err
	}
	if len(c.deleteBuf) == 0 {
		return zero, emdisk.New("pqueue.Cascade", emdisk.CodeStateViolation, "cascade is empty")
	}
	return c.deleteBuf[0], nil
}

func cmpFunc[T any](less merge.Less[T]) func(a, b T) int {
	return func(a, b T) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	}
}

// sliceSource adapts an in-memory slice to merge.Source[T].
type sliceSource[T any] struct {
	data []T
	pos  int
}

func (s *sliceSource[T]) Empty() bool { return s.pos >= len(s.data) }
func (s *sliceSource[T]) Peek() T     { return s.data[s.pos] }
func (s *sliceSource[T]) Next()       { s.pos++ }
