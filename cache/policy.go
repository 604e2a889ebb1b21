package cache

import (
	"container/list"
	"sync"

	"github.com/behrlich/go-emdisk/block"
)

// Policy decides which unpinned slot to evict next. Cache calls
// Touch whenever a slot is accessed (hit or fill) and Evict when it
// needs to free a slot, under the cache's own short-held lock per the
// "policy decisions run under one short-held mutex, I/O happens after"
// rule — Policy implementations must never block or perform I/O.
type Policy interface {
	// Touch records an access to slot.
	Touch(slot int)

	// Evict picks which of candidates (currently-unpinned slot indices)
	// to evict, given bidOf to resolve a slot's current BID when the
	// policy needs it. Returns -1 if it has no preference, in which
	// case the caller picks candidates[0].
	Evict(candidates []int, bidOf func(slot int) block.BID) int

	// Remove stops tracking slot (it is being reassigned to another BID).
	Remove(slot int)
}

// LRU evicts the least-recently-touched unpinned slot, via an
// intrusive doubly-linked list of slot indices. container/list is the
// standard library's doubly-linked list; no ecosystem LRU package
// appears anywhere in the retrieval pack to ground an alternative on,
// and the list itself is a handful of pointer operations that would
// gain nothing from a third-party dependency.
type LRU struct {
	mu       sync.Mutex
	order    *list.List
	elements map[int]*list.Element
}

// NewLRU constructs an empty LRU policy.
func NewLRU() *LRU {
	return &LRU{order: list.New(), elements: make(map[int]*list.Element)}
}

// Touch implements Policy.
func (l *LRU) Touch(slot int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.elements[slot]; ok {
		l.order.MoveToBack(e)
		return
	}
	l.elements[slot] = l.order.PushBack(slot)
}

// Evict implements Policy, returning the front (least-recently-used)
// candidate still present in the ordering.
func (l *LRU) Evict(candidates []int, bidOf func(slot int) block.BID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	want := make(map[int]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	for e := l.order.Front(); e != nil; e = e.Next() {
		if s := e.Value.(int); want[s] {
			return s
		}
	}
	return -1
}

// Remove implements Policy.
func (l *LRU) Remove(slot int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.elements[slot]; ok {
		l.order.Remove(e)
		delete(l.elements, slot)
	}
}

// Prediction is an ordered trace of BIDs a workload expects to access
// next, nearest access first. LFD and PrefetchLRU consume it.
type Prediction []block.BID

// distance returns how many steps ahead bid is next referenced in p,
// or -1 if it does not appear at all (farthest possible future).
func (p Prediction) distance(bid block.BID) int {
	for i, b := range p {
		if b == bid {
			return i
		}
	}
	return -1
}

// LFD (longest forward distance) evicts the unpinned slot whose BID is
// referenced farthest in the future per a Prediction, or never
// referenced again at all (treated as infinitely far). This is the
// offline-optimal (Belady) policy when the prediction is exact.
type LFD struct {
	mu   sync.Mutex
	pred Prediction
}

// NewLFD constructs an LFD policy driven by pred.
func NewLFD(pred Prediction) *LFD {
	return &LFD{pred: pred}
}

// SetPrediction replaces the future-access trace, e.g. once a new
// phase of a multi-pass algorithm begins.
func (l *LFD) SetPrediction(pred Prediction) {
	l.mu.Lock()
	l.pred = pred
	l.mu.Unlock()
}

// Touch is a no-op for LFD: its eviction decision depends only on the
// prediction, not on recency of access.
func (l *LFD) Touch(slot int) {}

// Remove is a no-op for LFD.
func (l *LFD) Remove(slot int) {}

// Evict implements Policy.
func (l *LFD) Evict(candidates []int, bidOf func(slot int) block.BID) int {
	l.mu.Lock()
	pred := l.pred
	l.mu.Unlock()

	best := -1
	bestDist := -2 // -2 sentinel: "not yet seen any candidate"
	for _, c := range candidates {
		d := pred.distance(bidOf(c))
		if d == -1 {
			// never referenced again: maximally evictable
			return c
		}
		if d > bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// PrefetchLRU layers a background prefetch lane on top of plain LRU
// eviction ordering: NextToStage hands out the next few entries of a
// Prediction, and Cache.Prefetch issues ordinary reads for those not
// already resident, so by the time a caller's Acquire reaches that BID
// it is usually already in RAM. Eviction behavior itself is exactly
// LRU's.
type PrefetchLRU struct {
	*LRU
	mu        sync.Mutex
	pred      Prediction
	cursor    int
	lookahead int
}

// NewPrefetchLRU constructs a PrefetchLRU with the given lookahead
// depth (how many upcoming Prediction entries to keep staged).
func NewPrefetchLRU(lookahead int) *PrefetchLRU {
	if lookahead < 1 {
		lookahead = 1
	}
	return &PrefetchLRU{LRU: NewLRU(), lookahead: lookahead}
}

// SetPrediction replaces the future-access trace and resets the
// prefetch cursor to its start.
func (p *PrefetchLRU) SetPrediction(pred Prediction) {
	p.mu.Lock()
	p.pred = pred
	p.cursor = 0
	p.mu.Unlock()
}

// NextToStage returns up to the policy's lookahead depth of upcoming
// BIDs not yet offered for staging, advancing the internal cursor.
// Cache.Prefetch calls this to learn what to issue reads for; it does
// not perform any I/O itself.
func (p *PrefetchLRU) NextToStage() []block.BID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []block.BID
	for len(out) < p.lookahead && p.cursor < len(p.pred) {
		out = append(out, p.pred[p.cursor])
		p.cursor++
	}
	return out
}

var (
	_ Policy = (*LRU)(nil)
	_ Policy = (*LFD)(nil)
	_ Policy = (*PrefetchLRU)(nil)
)
