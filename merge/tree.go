// Package merge implements k-way merging of sorted sequences: a
// generic loser-tree multiway merger, branchless fast paths for small
// fixed arities, and a parallel splitter that partitions the merge of
// many runs across worker goroutines. This is the computational core
// external sort and the external priority queue build on.
package merge

import "github.com/behrlich/go-emdisk/xsync"

// Less reports whether a sorts before b.
type Less[T any] func(a, b T) bool

// Source is anything that can be merged: a forward-only cursor over a
// sorted sequence. stream.Reader[T] satisfies this directly.
type Source[T any] interface {
	Empty() bool
	Peek() T
	Next()
}

// Tree is a k-way merger built on xsync.WinnerTree: each leaf tracks
// one input's current head (or, once that input is exhausted, a
// caller-supplied sentinel that compares no less than any real
// element), and the tournament always exposes the overall smallest
// live head in O(1), recomputing the path to the root in O(log k)
// after each Step.
//
// This plays the role STXXL's loser tree plays, but is built on the
// winner-tracking tournament rather than a separate loser-indexed
// array: the two structures do the same asymptotic work, and sharing
// the tournament implementation with the priority-queue cascade's
// level scheduler (xsync.WinnerTree) avoids maintaining two nearly
// identical trees.
type Tree[T any] struct {
	srcs     []Source[T]
	less     Less[T]
	sentinel T
	wt       *xsync.WinnerTree[T]
	done     []bool
	live     int
}

// New builds an unstable k-way merger: when two heads compare equal,
// which one emits first is unspecified. In this implementation it
// happens to coincide with NewStable's behavior (the underlying
// tournament always prefers the lower leaf index on a tie), so the two
// constructors are behaviorally identical here; New exists for API
// parity with call sites that only ever want "some" total order and
// document that intent.
func New[T any](srcs []Source[T], less Less[T], sentinel T) *Tree[T] {
	return newTree(srcs, less, sentinel)
}

// NewStable builds a k-way merger where, among equal heads, the input
// with the lower index in srcs always emits first.
func NewStable[T any](srcs []Source[T], less Less[T], sentinel T) *Tree[T] {
	return newTree(srcs, less, sentinel)
}

func newTree[T any](srcs []Source[T], less Less[T], sentinel T) *Tree[T] {
	t := &Tree[T]{
		srcs:     srcs,
		less:     less,
		sentinel: sentinel,
		done:     make([]bool, len(srcs)),
	}
	t.wt = xsync.NewWinnerTree[T](len(srcs), func(a, b T) bool { return less(a, b) })
	for i, s := range srcs {
		if s.Empty() {
			t.done[i] = true
			t.wt.Set(i, sentinel)
			continue
		}
		t.live++
		t.wt.Set(i, s.Peek())
	}
	return t
}

// Step emits the current overall smallest head and advances that
// input, returning ok=false once every input is exhausted.
func (t *Tree[T]) Step() (v T, ok bool) {
	if t.live == 0 {
		return v, false
	}
	idx, head := t.wt.Top()
	v = head
	src := t.srcs[idx]
	src.Next()
	if src.Empty() {
		t.done[idx] = true
		t.live--
		t.wt.Set(idx, t.sentinel)
	} else {
		t.wt.Set(idx, src.Peek())
	}
	return v, true
}

// Advance emits up to max elements, stopping early once every input is
// exhausted. It is the bounded variant of Step, useful for draining a
// merge in fixed-size chunks rather than one element at a time.
func (t *Tree[T]) Advance(max int) []T {
	out := make([]T, 0, max)
	for i := 0; i < max; i++ {
		v, ok := t.Step()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// Empty reports whether every input has been exhausted.
func (t *Tree[T]) Empty() bool {
	return t.live == 0
}
