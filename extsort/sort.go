// Package extsort sorts sequences too large to fit in memory: split
// into in-memory-sized runs, sort each run, spill it through the
// stream/cache layer, then merge every run back into a single ordered
// stream via the merge package. This is the Go analogue of
// original_source's parallel external sort (algo/test_parallel_sort.cpp),
// built on this module's own stream/cache/merge packages rather than
// STXXL's own runs_creator/runs_merger.
package extsort

import (
	"context"
	"slices"
	"unsafe"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/block"
	"github.com/behrlich/go-emdisk/cache"
	"github.com/behrlich/go-emdisk/merge"
	"github.com/behrlich/go-emdisk/stream"
)

// SortPolicy picks how the run-merge phase is carried out. It is an
// explicit argument rather than a build tag or environment toggle, so
// that a caller's choice of policy is visible at the call site and
// reproducible.
type SortPolicy int

const (
	// PolicySequential merges every run with a single merge.Tree.
	PolicySequential SortPolicy = iota
	// PolicyParallel merges runs with merge.ParallelMerge, falling back
	// to PolicySequential automatically when there are too few runs to
	// usefully split across workers.
	PolicyParallel
)

// Less reports whether a sorts before b.
type Less[T any] func(a, b T) bool

// Options configures Sort beyond the parameters every call needs.
type Options struct {
	Policy   SortPolicy
	Workers  int // worker count for PolicyParallel; defaults to 4
	Strategy block.Strategy
	Sentinel any // zero value used if nil; see Sort's doc comment
}

// Sort drains in, splits it into runs no larger than memBudget bytes,
// sorts each run in memory, spills it through the cache as a
// blockSize-blocked stream, and returns a Reader over the fully merged
// output. env.Manager must hold a *block.Manager and env.Cache a
// *cache.Cache (as set up by NewEnvironment/WithCache); Sort returns a
// CodeStateViolation error if either is missing or of the wrong type.
//
// Sort needs a sentinel value for the internal merge step (an element
// no real element compares greater than); opts.Sentinel supplies one.
// When nil, T's zero value is used, which is only correct when no input
// element sorts after the zero value under less (e.g. an ascending sort
// over non-positive numbers). An ascending sort over non-negative
// numbers or non-empty strings needs an explicit opts.Sentinel.
func Sort[T any](ctx context.Context, env *emdisk.Environment, in *stream.Reader[T], less Less[T], memBudget int64, blockSize int64, opts Options) (*stream.Reader[T], error) {
	manager, ok := env.Manager.(*block.Manager)
	if !ok || manager == nil {
		return nil, emdisk.New("extsort.Sort", emdisk.CodeStateViolation, "environment has no *block.Manager")
	}
	c, ok := env.Cache.(*cache.Cache)
	if !ok || c == nil {
		return nil, emdisk.New("extsort.Sort", emdisk.CodeStateViolation, "environment has no *cache.Cache")
	}

	var sentinel T
	if opts.Sentinel != nil {
		sentinel, ok = opts.Sentinel.(T)
		if !ok {
			return nil, emdisk.New("extsort.Sort", emdisk.CodeStateViolation, "opts.Sentinel is not of type T")
		}
	}

	elemSize := int64(unsafe.Sizeof(sentinel))
	if elemSize <= 0 {
		elemSize = 1
	}
	perRun := int(memBudget / elemSize)
	if perRun <= 0 {
		perRun = 1
	}

	var runBIDs [][]block.BID
	var runCounts []int
	total := 0

	buf := make([]T, 0, perRun)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		slices.SortFunc(buf, func(a, b T) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			default:
				return 0
			}
		})
		w := stream.NewWriter[T](ctx, c, manager, opts.Strategy, blockSize)
		for _, v := range buf {
			if err := w.Put(v); err != nil {
				return emdisk.WrapError("extsort.Sort", err)
			}
		}
		if err := w.Close(); err != nil {
			return emdisk.WrapError("extsort.Sort", err)
		}
		runBIDs = append(runBIDs, w.BIDs())
		runCounts = append(runCounts, w.Count())
		total += w.Count()
		buf = buf[:0]
		return nil
	}

	for !in.Empty() {
		buf = append(buf, in.Peek())
		in.Next()
		if len(buf) == perRun {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if err := in.Err(); err != nil {
		return nil, emdisk.WrapError("extsort.Sort", err)
	}

	if len(runBIDs) == 0 {
		return stream.NewReader[T](ctx, c, nil, 0, blockSize), nil
	}
	if len(runBIDs) == 1 {
		return stream.NewReader[T](ctx, c, runBIDs[0], runCounts[0], blockSize), nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	policy := opts.Policy
	if len(runBIDs) < workers {
		policy = PolicySequential
	}

	srcs := make([]merge.Source[T], len(runBIDs))
	for i := range runBIDs {
		srcs[i] = stream.NewReader[T](ctx, c, runBIDs[i], runCounts[i], blockSize)
	}

	mergedW := stream.NewWriter[T](ctx, c, manager, opts.Strategy, blockSize)
	switch policy {
	case PolicyParallel:
		out := make([]T, total)
		if err := merge.ParallelMerge[T](srcs, merge.Less[T](less), out, workers, merge.ExactSelector[T]{}, sentinel); err != nil {
			return nil, emdisk.WrapError("extsort.Sort", err)
		}
		for _, v := range out {
			if err := mergedW.Put(v); err != nil {
				return nil, emdisk.WrapError("extsort.Sort", err)
			}
		}
	default:
		tree := merge.NewStable[T](srcs, merge.Less[T](less), sentinel)
		for {
			v, ok := tree.Step()
			if !ok {
				break
			}
			if err := mergedW.Put(v); err != nil {
				return nil, emdisk.WrapError("extsort.Sort", err)
			}
		}
	}
	if err := mergedW.Close(); err != nil {
		return nil, emdisk.WrapError("extsort.Sort", err)
	}

	return stream.NewReader[T](ctx, c, mergedW.BIDs(), mergedW.Count(), blockSize), nil
}
