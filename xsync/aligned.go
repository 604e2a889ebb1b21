package xsync

import "code.hybscloud.com/iobuf"

// AlignedAlloc returns a byte slice of the given size whose starting
// address is aligned to the system page size, suitable for O_DIRECT
// reads/writes and for buffers handed to the async io_uring backend.
func AlignedAlloc(size int) []byte {
	return iobuf.AlignedMem(size, iobuf.PageSize)
}

// AlignedAllocator hands out page-aligned buffers of a fixed size,
// carving them out of a shared contiguous allocation when more than one
// is requested up front. It is the aligned-buffer-pool analogue the
// cache's slot pool and the stream pools build typed blocks on top of.
type AlignedAllocator struct {
	blockSize int
}

// NewAlignedAllocator returns an allocator that hands out blockSize-byte
// page-aligned buffers.
func NewAlignedAllocator(blockSize int) *AlignedAllocator {
	return &AlignedAllocator{blockSize: blockSize}
}

// Alloc returns a single page-aligned buffer of the allocator's block size.
func (a *AlignedAllocator) Alloc() []byte {
	return AlignedAlloc(a.blockSize)
}

// AllocBatch returns n page-aligned buffers of the allocator's block
// size. When the block size fits within a single page, the batch shares
// one underlying allocation via iobuf.AlignedMemBlocks; larger blocks
// fall back to one AlignedMem call per buffer.
func (a *AlignedAllocator) AllocBatch(n int) [][]byte {
	if n < 1 {
		return nil
	}
	if a.blockSize <= int(iobuf.PageSize) {
		blocks := iobuf.AlignedMemBlocks(n, iobuf.PageSize)
		out := make([][]byte, n)
		for i, b := range blocks {
			out[i] = b[:a.blockSize]
		}
		return out
	}
	out := make([][]byte, n)
	for i := range out {
		out[i] = AlignedAlloc(a.blockSize)
	}
	return out
}

// BlockSize returns the fixed size of buffers this allocator produces.
func (a *AlignedAllocator) BlockSize() int {
	return a.blockSize
}
