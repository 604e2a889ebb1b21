package file

import (
	"context"
	"sort"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/internal/constants"
	"github.com/behrlich/go-emdisk/xsync"
)

// WBTLFile is a write-buffered translation layer: logical offsets
// passed to WriteAt never land at that same physical offset in the
// backing storage Backend. Instead writes accumulate into one of two
// page-aligned super-block buffers; a super-block is flushed to disk
// as a single large write only once it fills, turning a workload of
// small scattered logical writes into few large sequential physical
// ones. A logical->physical map records where each write actually
// landed so a later ReadAt can find it, either by re-reading it out of
// whichever write buffer still holds it in RAM or, once flushed, from
// storage.
type WBTLFile struct {
	storage Backend

	mu sync.Mutex

	superBlockSize int64
	writeBuf       [2][]byte
	bufAddr        [2]int64 // physical start of each super-block, -1 if unset
	curBuf         int
	curPos         int64

	addressMapping map[int64]int64 // logical offset -> physical offset

	freeMu sync.Mutex
	free   []extent // sorted, disjoint free physical regions
	sz     int64
}

// NewWBTLFile wraps storage with a write-buffered translation layer
// using superBlockSize-byte super-blocks (0 selects the default).
func NewWBTLFile(storage Backend, superBlockSize int64) *WBTLFile {
	if superBlockSize <= 0 {
		superBlockSize = constants.WBTLSuperBlockSize
	}
	w := &WBTLFile{
		storage:        storage,
		superBlockSize: superBlockSize,
		curBuf:         0,
		curPos:         superBlockSize, // force an allocation on the first write
		addressMapping: make(map[int64]int64),
	}
	w.writeBuf[0] = xsync.AlignedAlloc(int(superBlockSize))
	w.writeBuf[1] = xsync.AlignedAlloc(int(superBlockSize))
	w.bufAddr[0] = -1
	w.bufAddr[1] = -1
	return w
}

// addFreeRegionLocked inserts [pos, pos+size) into the free list,
// coalescing with an adjacent predecessor/successor and raising
// CodeDoubleFree if the region overlaps either. Mirrors
// block.DiskAllocator's free-region merge.
func (w *WBTLFile) addFreeRegionLocked(pos, size int64) error {
	idx := sort.Search(len(w.free), func(i int) bool { return w.free[i].Offset >= pos })

	if idx > 0 {
		pred := w.free[idx-1]
		if pred.Offset+pred.Length > pos {
			return emdisk.NewDoubleFree("file.WBTLFile", -1, "double free of physical write-buffer region")
		}
	}
	if idx < len(w.free) {
		succ := w.free[idx]
		if pos+size > succ.Offset {
			return emdisk.NewDoubleFree("file.WBTLFile", -1, "double free of physical write-buffer region")
		}
	}

	merged := extent{Offset: pos, Length: size}
	lo, hi := idx, idx
	if idx > 0 && w.free[idx-1].Offset+w.free[idx-1].Length == pos {
		merged.Offset = w.free[idx-1].Offset
		merged.Length += w.free[idx-1].Length
		lo = idx - 1
	}
	if idx < len(w.free) && pos+size == w.free[idx].Offset {
		merged.Length += w.free[idx].Length
		hi = idx + 1
	}

	tail := append([]extent{}, w.free[hi:]...)
	w.free = append(append(w.free[:lo], merged), tail...)
	return nil
}

// nextWriteBlock first-fits a superBlockSize region out of the free
// list, splitting off any remainder, or extends storage when nothing
// fits.
func (w *WBTLFile) nextWriteBlock() (int64, error) {
	w.freeMu.Lock()
	for i, e := range w.free {
		if e.Length < w.superBlockSize {
			continue
		}
		pos := e.Offset
		if e.Length > w.superBlockSize {
			w.free[i] = extent{Offset: e.Offset + w.superBlockSize, Length: e.Length - w.superBlockSize}
		} else {
			w.free = append(w.free[:i], w.free[i+1:]...)
		}
		w.freeMu.Unlock()
		return pos, nil
	}
	w.freeMu.Unlock()

	pos := w.sz
	if err := w.storage.SetSize(w.sz + w.superBlockSize); err != nil {
		return 0, emdisk.WrapError("file.WBTLFile.nextWriteBlock", err)
	}
	w.sz += w.superBlockSize
	return pos, nil
}

// ReadAt resolves the logical offset to its current physical location,
// serving it out of whichever write buffer still holds it in RAM, or
// falling through to storage once it has been flushed.
func (w *WBTLFile) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	w.mu.Lock()
	physical, ok := w.addressMapping[off]
	if !ok {
		w.mu.Unlock()
		return 0, emdisk.New("file.WBTLFile.ReadAt", emdisk.CodeIoError, "read of unmapped logical offset")
	}

	for _, buf := range [2]int{w.curBuf, 1 - w.curBuf} {
		base := w.bufAddr[buf]
		if base != -1 && physical >= base && physical < base+w.superBlockSize {
			n := copy(p, w.writeBuf[buf][physical-base:])
			w.mu.Unlock()
			return n, nil
		}
	}
	w.mu.Unlock()

	return w.storage.ReadAt(ctx, p, physical)
}

// WriteAt accumulates the write into the current super-block buffer,
// flushing the previous one to storage when it fills.
func (w *WBTLFile) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.addressMapping[off]; ok {
		delete(w.addressMapping, off)
		_ = w.addFreeRegionLocked(old, int64(len(p)))
	}

	if int64(len(p)) > w.superBlockSize-w.curPos {
		if w.bufAddr[w.curBuf] != -1 {
			if w.curPos < w.superBlockSize {
				_ = w.addFreeRegionLocked(w.bufAddr[w.curBuf]+w.curPos, w.superBlockSize-w.curPos)
			}
			if _, err := w.storage.WriteAt(ctx, w.writeBuf[w.curBuf], w.bufAddr[w.curBuf]); err != nil {
				return 0, emdisk.WrapError("file.WBTLFile.WriteAt", err)
			}
		}

		w.curBuf = 1 - w.curBuf
		next, err := w.nextWriteBlock()
		if err != nil {
			return 0, err
		}
		w.bufAddr[w.curBuf] = next
		w.curPos = 0
	}

	n := copy(w.writeBuf[w.curBuf][w.curPos:], p)
	w.addressMapping[off] = w.bufAddr[w.curBuf] + w.curPos
	w.curPos += int64(n)
	return n, nil
}

// Size returns the logical size. It grows through SetSize and whenever
// a new super-block has to extend storage; it never shrinks.
func (w *WBTLFile) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sz
}

// SetSize grows the logical address space, marking the new region as
// free physical space available for future super-block allocation. It
// may not shrink.
func (w *WBTLFile) SetSize(n int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < w.sz {
		return emdisk.New("file.WBTLFile.SetSize", emdisk.CodeInvariantFailure, "wbtl file may not shrink")
	}
	if n == w.sz {
		return nil
	}
	w.freeMu.Lock()
	err := w.addFreeRegionLocked(w.sz, n-w.sz)
	w.freeMu.Unlock()
	if err != nil {
		return err
	}
	if err := w.storage.SetSize(n); err != nil {
		return emdisk.WrapError("file.WBTLFile.SetSize", err)
	}
	w.sz = n
	return nil
}

// Discard is not meaningful for a translation layer whose logical
// offsets are never physical; callers should use a delete-region style
// operation (tracked by the higher-level block manager) instead.
func (w *WBTLFile) Discard(off, length int64) error { return nil }

// Sync flushes the current super-block (if partially filled, it is
// still written; the unused tail is simply not yet reclaimed as free
// space) and syncs storage.
func (w *WBTLFile) Sync() error {
	w.mu.Lock()
	if w.bufAddr[w.curBuf] != -1 && w.curPos > 0 {
		if _, err := w.storage.WriteAt(context.Background(), w.writeBuf[w.curBuf][:w.curPos], w.bufAddr[w.curBuf]); err != nil {
			w.mu.Unlock()
			return emdisk.WrapError("file.WBTLFile.Sync", err)
		}
	}
	w.mu.Unlock()
	return w.storage.Sync()
}

// Close flushes outstanding buffered data and closes storage.
func (w *WBTLFile) Close() error {
	if err := w.Sync(); err != nil {
		return err
	}
	return w.storage.Close()
}

// AlignmentGranularity delegates to the wrapped storage backend, since
// super-block writes still land on it at whatever alignment it needs.
func (w *WBTLFile) AlignmentGranularity() int64 { return w.storage.AlignmentGranularity() }

var _ Backend = (*WBTLFile)(nil)
