// Package cache implements the block cache and swappable-block state
// machine: a fixed pool of RAM slots holding pages of external-memory
// data, backed by block.BID-addressed storage, with pluggable
// eviction policies.
package cache

import (
	"sync"

	"github.com/behrlich/go-emdisk/block"
)

// BlockState is a SwappableBlock's location/cleanliness, independent
// of whether it is currently pinned.
type BlockState int

const (
	// Uninitialized has never held valid data.
	Uninitialized BlockState = iota
	// CleanInRAM holds data matching what's on disk (or has no disk
	// copy yet and has never been written to).
	CleanInRAM
	// DirtyInRAM holds data that must be written back before the slot
	// can be reused for anything else.
	DirtyInRAM
	// OnDisk means the slot holds no data; the valid copy lives at BID.
	OnDisk
)

func (s BlockState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case CleanInRAM:
		return "clean_in_ram"
	case DirtyInRAM:
		return "dirty_in_ram"
	case OnDisk:
		return "on_disk"
	default:
		return "unknown"
	}
}

// SwappableBlock is one cache slot: a fixed-size RAM buffer plus the
// BID it currently mirrors (if any) and a pin count. Unlike a plain
// boolean pinned flag, the counter lets nested Acquire/Release pairs
// (e.g. a merge step and the stream reader feeding it both holding a
// reference to the same slot) compose correctly.
type SwappableBlock struct {
	mu       sync.Mutex
	state    BlockState
	pinCount int
	bid      block.BID
	data     []byte
}

// newSwappableBlock wraps a pre-allocated, already appropriately
// aligned buffer. Cache owns allocation; SwappableBlock never
// allocates its own backing memory.
func newSwappableBlock(data []byte) *SwappableBlock {
	return &SwappableBlock{state: Uninitialized, bid: block.BID{Backend: block.Unmanaged}, data: data}
}

// State returns the current state.
func (s *SwappableBlock) State() BlockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BID returns the BID this slot currently mirrors.
func (s *SwappableBlock) BID() block.BID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bid
}

// Data returns the slot's backing buffer. Callers must hold a pin
// (via Cache.Acquire) for as long as they read or write it.
func (s *SwappableBlock) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// IsPinned reports whether the pin count is non-zero.
func (s *SwappableBlock) IsPinned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinCount > 0
}

// PinCount returns the current pin count.
func (s *SwappableBlock) PinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinCount
}

func (s *SwappableBlock) pin() {
	s.mu.Lock()
	s.pinCount++
	s.mu.Unlock()
}

func (s *SwappableBlock) unpin() {
	s.mu.Lock()
	if s.pinCount > 0 {
		s.pinCount--
	}
	s.mu.Unlock()
}

// markDirty transitions a RAM-resident slot to DirtyInRAM.
func (s *SwappableBlock) markDirty() {
	s.mu.Lock()
	if s.state == CleanInRAM || s.state == Uninitialized {
		s.state = DirtyInRAM
	}
	s.mu.Unlock()
}

func (s *SwappableBlock) setState(st BlockState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *SwappableBlock) setBID(b block.BID) {
	s.mu.Lock()
	s.bid = b
	s.mu.Unlock()
}
