package emdisk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsRecordAndSnapshot(t *testing.T) {
	s := NewStats()
	s.RecordRead(4096, 10*time.Millisecond)
	s.RecordWrite(8192, 20*time.Millisecond)
	s.RecordWait(5 * time.Millisecond)

	snap := s.Snapshot()
	require.Equal(t, uint64(1), snap.Reads)
	require.Equal(t, uint64(1), snap.Writes)
	require.Equal(t, uint64(4096), snap.BytesRead)
	require.Equal(t, uint64(8192), snap.BytesWritten)
	require.Equal(t, 10*time.Millisecond, snap.TReadSerial)
	require.Equal(t, 5*time.Millisecond, snap.TWait)
}

func TestStatsParallelAccounting(t *testing.T) {
	s := NewStats()
	s.BeginParallel()
	s.BeginParallel()
	time.Sleep(5 * time.Millisecond)
	s.EndParallel(true, false)
	snap := s.Snapshot()
	require.Zero(t, snap.TIOParallel, "parallel span should not close while a request is still in flight")

	s.EndParallel(false, true)
	snap = s.Snapshot()
	require.Greater(t, snap.TIOParallel, time.Duration(0))
	require.Greater(t, snap.TReadParallel, time.Duration(0))
	require.Greater(t, snap.TWriteParallel, time.Duration(0))
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.RecordRead(100, time.Millisecond)
	s.Reset()
	snap := s.Snapshot()
	require.Zero(t, snap.Reads)
	require.Zero(t, snap.BytesRead)
}
