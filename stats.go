package emdisk

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats tracks process-wide I/O counters for the request/queue engine.
// Operation and byte counts are atomics; serial times, parallel times
// and wait time each sit behind their own mutex, so those families
// never contend with one another.
type Stats struct {
	reads  atomic.Uint64
	writes atomic.Uint64

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	serialMu      sync.Mutex
	tReadSerial   time.Duration
	tWriteSerial  time.Duration

	parallelMu     sync.Mutex
	tReadParallel  time.Duration
	tWriteParallel time.Duration
	tIOParallel    time.Duration

	waitMu sync.Mutex
	tWait  time.Duration

	parallelMark   sync.Mutex
	inFlight       int
	parallelStart  time.Time
	spanRead       bool
	spanWrite      bool
}

// NewStats returns a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

// RecordRead accounts a completed read of n bytes taking d wall-clock
// time on the worker that served it (serial time).
func (s *Stats) RecordRead(n int, d time.Duration) {
	s.reads.Add(1)
	s.bytesRead.Add(uint64(n))
	s.serialMu.Lock()
	s.tReadSerial += d
	s.serialMu.Unlock()
}

// RecordWrite accounts a completed write of n bytes taking d serial time.
func (s *Stats) RecordWrite(n int, d time.Duration) {
	s.writes.Add(1)
	s.bytesWritten.Add(uint64(n))
	s.serialMu.Lock()
	s.tWriteSerial += d
	s.serialMu.Unlock()
}

// RecordWait accounts time a caller spent blocked in wait/wait_any/wait_all.
func (s *Stats) RecordWait(d time.Duration) {
	s.waitMu.Lock()
	s.tWait += d
	s.waitMu.Unlock()
}

// BeginParallel marks the start of an in-flight request for the purpose
// of wall-clock parallel-time accounting; EndParallel closes it out.
// Parallel time only accrues while at least one request is in flight,
// matching the "at least one request in flight" definition in the spec
// this package implements.
func (s *Stats) BeginParallel() {
	s.parallelMark.Lock()
	defer s.parallelMark.Unlock()
	if s.inFlight == 0 {
		s.parallelStart = time.Now()
	}
	s.inFlight++
}

// EndParallel closes out one in-flight request. Once the last request
// drains, the elapsed parallel span is added to the I/O parallel time,
// and to the read and/or write parallel time if any request that ended
// within the span was a read or a write respectively.
func (s *Stats) EndParallel(isRead, isWrite bool) {
	s.parallelMark.Lock()
	s.inFlight--
	s.spanRead = s.spanRead || isRead
	s.spanWrite = s.spanWrite || isWrite
	var span time.Duration
	drained := s.inFlight == 0
	spanRead, spanWrite := s.spanRead, s.spanWrite
	if drained {
		span = time.Since(s.parallelStart)
		s.spanRead, s.spanWrite = false, false
	}
	s.parallelMark.Unlock()

	if !drained {
		return
	}
	s.parallelMu.Lock()
	s.tIOParallel += span
	if spanRead {
		s.tReadParallel += span
	}
	if spanWrite {
		s.tWriteParallel += span
	}
	s.parallelMu.Unlock()
}

// Snapshot is a point-in-time copy of Stats, safe to read without
// further synchronization.
type Snapshot struct {
	Reads, Writes           uint64
	BytesRead, BytesWritten uint64
	TReadSerial, TWriteSerial     time.Duration
	TReadParallel, TWriteParallel time.Duration
	TIOParallel                   time.Duration
	TWait                         time.Duration
}

// Snapshot copies out the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.serialMu.Lock()
	rs, ws := s.tReadSerial, s.tWriteSerial
	s.serialMu.Unlock()

	s.parallelMu.Lock()
	rp, wp, io := s.tReadParallel, s.tWriteParallel, s.tIOParallel
	s.parallelMu.Unlock()

	s.waitMu.Lock()
	wait := s.tWait
	s.waitMu.Unlock()

	return Snapshot{
		Reads:          s.reads.Load(),
		Writes:         s.writes.Load(),
		BytesRead:      s.bytesRead.Load(),
		BytesWritten:   s.bytesWritten.Load(),
		TReadSerial:    rs,
		TWriteSerial:   ws,
		TReadParallel:  rp,
		TWriteParallel: wp,
		TIOParallel:    io,
		TWait:          wait,
	}
}

// Reset zeroes every counter; useful between benchmark phases in tests.
func (s *Stats) Reset() {
	s.reads.Store(0)
	s.writes.Store(0)
	s.bytesRead.Store(0)
	s.bytesWritten.Store(0)

	s.serialMu.Lock()
	s.tReadSerial, s.tWriteSerial = 0, 0
	s.serialMu.Unlock()

	s.parallelMu.Lock()
	s.tReadParallel, s.tWriteParallel, s.tIOParallel = 0, 0, 0
	s.parallelMu.Unlock()

	s.waitMu.Lock()
	s.tWait = 0
	s.waitMu.Unlock()
}
