package file

import (
	"context"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
)

// memShardSize mirrors the teacher's 64KB memory-backend shard: large
// enough to keep lock overhead low, small enough that concurrent 4K-ish
// I/O from different streams rarely contends on the same shard.
const memShardSize = 64 * 1024

// MemFile is an in-memory Backend for tests and for workloads that fit
// entirely in RAM. It uses the same per-shard RWMutex sharding as the
// teacher's memory backend so that concurrent reads/writes to disjoint
// regions don't serialize on a single global lock.
type MemFile struct {
	mu     sync.Mutex // guards data/shards slice identity across SetSize
	data   []byte
	shards []sync.RWMutex
}

// NewMemFile creates an in-memory backend of the given size, zero-filled.
func NewMemFile(size int64) *MemFile {
	f := &MemFile{}
	f.resizeLocked(size)
	return f
}

func (f *MemFile) resizeLocked(size int64) {
	numShards := (size + memShardSize - 1) / memShardSize
	if numShards < 1 {
		numShards = 1
	}
	data := make([]byte, size)
	copy(data, f.data)
	f.data = data
	f.shards = make([]sync.RWMutex, numShards)
}

func (f *MemFile) shardRange(off, length int64) (start, end int) {
	start = int(off / memShardSize)
	end = int((off + length - 1) / memShardSize)
	if end >= len(f.shards) {
		end = len(f.shards) - 1
	}
	return start, end
}

// ReadAt implements Backend.
func (f *MemFile) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	f.mu.Lock()
	data, shards, size := f.data, f.shards, int64(len(f.data))
	f.mu.Unlock()

	if off >= size {
		return 0, emdisk.New("file.MemFile.ReadAt", emdisk.CodeIoError, "read past end of file")
	}
	if int64(len(p)) > size-off {
		p = p[:size-off]
	}

	startShard, endShard := shardRangeOf(shards, off, int64(len(p)))
	for i := startShard; i <= endShard; i++ {
		shards[i].RLock()
	}
	n := copy(p, data[off:off+int64(len(p))])
	for i := startShard; i <= endShard; i++ {
		shards[i].RUnlock()
	}
	return n, nil
}

// WriteAt implements Backend.
func (f *MemFile) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	f.mu.Lock()
	data, shards, size := f.data, f.shards, int64(len(f.data))
	f.mu.Unlock()

	if off+int64(len(p)) > size {
		return 0, emdisk.New("file.MemFile.WriteAt", emdisk.CodeIoError, "write past end of file")
	}

	startShard, endShard := shardRangeOf(shards, off, int64(len(p)))
	for i := startShard; i <= endShard; i++ {
		shards[i].Lock()
	}
	n := copy(data[off:off+int64(len(p))], p)
	for i := startShard; i <= endShard; i++ {
		shards[i].Unlock()
	}
	return n, nil
}

func shardRangeOf(shards []sync.RWMutex, off, length int64) (start, end int) {
	start = int(off / memShardSize)
	end = int((off + length - 1) / memShardSize)
	if end >= len(shards) {
		end = len(shards) - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// Size implements Backend.
func (f *MemFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data))
}

// SetSize implements Backend, growing or shrinking the backing slice.
// Every shard is briefly locked to serialize against in-flight readers
// and writers holding stale shard-slice references.
func (f *MemFile) SetSize(n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		return emdisk.New("file.MemFile.SetSize", emdisk.CodeInvariantFailure, "negative size")
	}
	old := f.shards
	for i := range old {
		old[i].Lock()
	}
	f.resizeLocked(n)
	for i := range old {
		old[i].Unlock()
	}
	return nil
}

// Discard zeroes the given region.
func (f *MemFile) Discard(off, length int64) error {
	f.mu.Lock()
	data, shards, size := f.data, f.shards, int64(len(f.data))
	f.mu.Unlock()

	if off >= size {
		return nil
	}
	end := off + length
	if end > size {
		end = size
	}
	startShard, endShard := shardRangeOf(shards, off, end-off)
	for i := startShard; i <= endShard; i++ {
		shards[i].Lock()
	}
	for i := off; i < end; i++ {
		data[i] = 0
	}
	for i := startShard; i <= endShard; i++ {
		shards[i].Unlock()
	}
	return nil
}

// Sync is a no-op; MemFile has no durable backing store.
func (f *MemFile) Sync() error { return nil }

// Close releases the backing memory.
func (f *MemFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
	f.shards = nil
	return nil
}

// AlignmentGranularity returns 1: in-memory access has no alignment
// requirement.
func (f *MemFile) AlignmentGranularity() int64 { return 1 }

var _ Backend = (*MemFile)(nil)
