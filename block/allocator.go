package block

import (
	"sort"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
)

// extent is a free byte range [Offset, Offset+Length).
type extent struct {
	Offset int64
	Length int64
}

// DiskAllocator maintains the sorted, disjoint free-extent set for one
// backing disk and implements first-fit-then-recursive-bisect
// allocation plus predecessor/successor coalescing on free.
type DiskAllocator struct {
	mu        sync.Mutex
	free      []extent // kept sorted by Offset, pairwise disjoint
	freeBytes int64
	diskBytes int64
	cfgBytes  int64
	autogrow  bool
	grow      func(newSize int64) error
	diskIndex int
}

// NewDiskAllocator creates an allocator over a disk of the given
// configured size. diskIndex is only used to tag errors; grow is called
// (with the allocator's lock held) when autogrow must extend the
// backing file.
func NewDiskAllocator(diskIndex int, cfgBytes int64, autogrow bool, grow func(int64) error) *DiskAllocator {
	a := &DiskAllocator{
		cfgBytes:  cfgBytes,
		autogrow:  autogrow,
		grow:      grow,
		diskIndex: diskIndex,
	}
	_ = a.addFreeRegionLocked(0, cfgBytes)
	a.diskBytes = cfgBytes
	return a
}

// FreeBytes returns the total currently-free byte count.
func (a *DiskAllocator) FreeBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeBytes
}

// TotalBytes returns the current (possibly grown) disk size.
func (a *DiskAllocator) TotalBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diskBytes
}

// UsedBytes returns diskBytes - freeBytes.
func (a *DiskAllocator) UsedBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diskBytes - a.freeBytes
}

// addFreeRegionLocked inserts [pos, pos+size) into the free set,
// coalescing with an adjacent predecessor and/or successor extent. The
// caller must hold a.mu. Overlap with a neighbor is reported as a
// double-free via the returned error (nil on success).
func (a *DiskAllocator) addFreeRegionLocked(pos, size int64) error {
	if size == 0 {
		return nil
	}
	freed := size
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Offset >= pos })

	// predecessor is a.free[i-1], successor is a.free[i]
	if i > 0 {
		pred := a.free[i-1]
		if pred.Offset+pred.Length > pos {
			return emdisk.NewDoubleFree("block.DiskAllocator.Free", a.diskIndex, "overlaps predecessor extent")
		}
	}
	if i < len(a.free) {
		succ := a.free[i]
		if pos+size > succ.Offset {
			return emdisk.NewDoubleFree("block.DiskAllocator.Free", a.diskIndex, "overlaps successor extent")
		}
	}

	mergedLeft := false
	if i > 0 && a.free[i-1].Offset+a.free[i-1].Length == pos {
		a.free[i-1].Length += size
		pos = a.free[i-1].Offset
		size = a.free[i-1].Length
		mergedLeft = true
	}
	if i < len(a.free) && pos+size == a.free[i].Offset {
		if mergedLeft {
			a.free[i-1].Length += a.free[i].Length
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i].Offset = pos
			a.free[i].Length += size
		}
	} else if !mergedLeft {
		a.free = append(a.free, extent{})
		copy(a.free[i+1:], a.free[i:])
		a.free[i] = extent{Offset: pos, Length: size}
	}
	a.freeBytes += freed
	return nil
}

func (a *DiskAllocator) growLocked(extra int64) error {
	if extra <= 0 {
		return nil
	}
	if a.grow != nil {
		if err := a.grow(a.diskBytes + extra); err != nil {
			return err
		}
	}
	if err := a.addFreeRegionLocked(a.diskBytes, extra); err != nil {
		return err
	}
	a.diskBytes += extra
	return nil
}

// Free returns the range [offset, offset+length) to the free set.
func (a *DiskAllocator) Free(offset, length int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addFreeRegionLocked(offset, length)
}

// NewBlocks allocates contiguous space for each size in sizes and fills
// in the corresponding offsets via the out callback, called once per
// index in sizes' original order. A batch that fits no single free
// extent is split in halves recursively. If a later half fails, the
// halves allocated before it stay allocated and their offsets have
// already been passed to out; NewBlocks does not free them itself.
func (a *DiskAllocator) NewBlocks(sizes []int64, out func(i int, offset int64)) error {
	if len(sizes) == 0 {
		return nil
	}
	var total int64
	for _, s := range sizes {
		total += s
	}

	a.mu.Lock()
	if a.freeBytes < total {
		if !a.autogrow {
			a.mu.Unlock()
			return emdisk.NewOutOfExternalMemory("block.DiskAllocator.NewBlocks", total)
		}
		if err := a.growLocked(total); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	a.mu.Unlock()

	return a.allocateRange(sizes, 0, len(sizes), out)
}

// allocateRange allocates sizes[lo:hi] as one contiguous request when
// possible, recursively bisecting otherwise. The lock is not held
// across the recursive re-entry.
func (a *DiskAllocator) allocateRange(sizes []int64, lo, hi int, out func(i int, offset int64)) error {
	var total int64
	for i := lo; i < hi; i++ {
		total += sizes[i]
	}
	if total == 0 {
		return nil
	}

	a.mu.Lock()
	idx, found := a.firstFitLocked(total)
	if found {
		region := a.free[idx]
		if region.Length > total {
			a.free[idx] = extent{Offset: region.Offset + total, Length: region.Length - total}
		} else {
			a.free = append(a.free[:idx], a.free[idx+1:]...)
		}
		a.freeBytes -= total
		a.mu.Unlock()

		pos := region.Offset
		for i := lo; i < hi; i++ {
			out(i, pos)
			pos += sizes[i]
		}
		return nil
	}
	a.mu.Unlock()

	if hi-lo == 1 {
		// a single block couldn't be satisfied even after the caller's
		// autogrow pass; out of space for this shape of request.
		return emdisk.NewOutOfExternalMemory("block.DiskAllocator.NewBlocks", total)
	}

	mid := lo + (hi-lo)/2
	if err := a.allocateRange(sizes, lo, mid, out); err != nil {
		return err
	}
	return a.allocateRange(sizes, mid, hi, out)
}

// firstFitLocked returns the index of the lowest-offset free extent
// whose length is >= size. The caller must hold a.mu.
func (a *DiskAllocator) firstFitLocked(size int64) (int, bool) {
	for i, e := range a.free {
		if e.Length >= size {
			return i, true
		}
	}
	return 0, false
}

// FreeExtentCount reports the number of disjoint free extents, mostly
// useful for tests asserting the sorted-disjoint invariant.
func (a *DiskAllocator) FreeExtentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.free)
}

// Extents returns a copy of the current free-extent set as
// (offset, length) pairs, sorted by offset.
func (a *DiskAllocator) Extents() []struct{ Offset, Length int64 } {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]struct{ Offset, Length int64 }, len(a.free))
	for i, e := range a.free {
		out[i] = struct{ Offset, Length int64 }{e.Offset, e.Length}
	}
	return out
}
