// Package xsync provides the small synchronization and allocation
// primitives the rest of go-emdisk builds on: a counting semaphore, an
// on/off switch for wait_any/wait_all, an atomic-refcounted handle,
// a page-aligned allocator, and a generic winner tree.
package xsync

import "sync"

// Semaphore is a classic counting semaphore whose Wait reports the
// post-decrement value, so a caller can tell "I drained the last
// permit" from "permits remained".
type Semaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int64
}

// NewSemaphore creates a semaphore with the given initial permit count.
func NewSemaphore(initial int64) *Semaphore {
	s := &Semaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Wait blocks until a permit is available, consumes it, and returns the
// count remaining after the decrement.
func (s *Semaphore) Wait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.count <= 0 {
		s.cond.Wait()
	}
	s.count--
	return s.count
}

// Signal releases n permits (n defaults to 1 semantically via Signal1).
func (s *Semaphore) Signal(n int64) {
	s.mu.Lock()
	s.count += n
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Signal1 releases a single permit.
func (s *Semaphore) Signal1() {
	s.Signal(1)
}

// Value returns the current permit count without blocking.
func (s *Semaphore) Value() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
