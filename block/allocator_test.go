package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskAllocatorFirstFitAndFree(t *testing.T) {
	a := NewDiskAllocator(0, 1<<20, false, nil)
	require.Equal(t, int64(1<<20), a.FreeBytes())

	var offsets []int64
	err := a.NewBlocks([]int64{4096, 4096, 4096}, func(i int, off int64) {
		offsets = append(offsets, off)
	})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 4096, 8192}, offsets)
	require.Equal(t, int64(1<<20-3*4096), a.FreeBytes())

	require.NoError(t, a.Free(0, 4096*3))
	require.Equal(t, int64(1<<20), a.FreeBytes())
	require.Equal(t, 1, a.FreeExtentCount())
}

func TestDiskAllocatorReallocateSameOffset(t *testing.T) {
	a := NewDiskAllocator(0, 1<<20, false, nil)
	var first int64
	require.NoError(t, a.NewBlocks([]int64{4096}, func(i int, off int64) { first = off }))
	require.NoError(t, a.Free(first, 4096))

	var second int64
	require.NoError(t, a.NewBlocks([]int64{4096}, func(i int, off int64) { second = off }))
	require.Equal(t, first, second, "first-fit coalescing should hand back the same offset")
}

func TestDiskAllocatorOutOfMemory(t *testing.T) {
	a := NewDiskAllocator(0, 4096, false, nil)
	err := a.NewBlocks([]int64{8192}, func(int, int64) {})
	require.Error(t, err)
}

func TestDiskAllocatorAutogrow(t *testing.T) {
	grown := int64(-1)
	a := NewDiskAllocator(0, 4096, true, func(newSize int64) error {
		grown = newSize
		return nil
	})
	err := a.NewBlocks([]int64{8192}, func(int, int64) {})
	require.NoError(t, err)
	require.Equal(t, int64(4096+8192), grown)
}

func TestDiskAllocatorSplitBisection(t *testing.T) {
	a := NewDiskAllocator(0, 1800, false, nil)
	var offsets []int64
	require.NoError(t, a.NewBlocks([]int64{600, 600, 600}, func(i int, off int64) {
		offsets = append(offsets, off)
	}))
	// free the first and third blocks, keeping the middle allocated so
	// the two resulting free extents are disjoint, not coalesced
	require.NoError(t, a.Free(offsets[0], 600))
	require.NoError(t, a.Free(offsets[2], 600))
	require.Equal(t, 2, a.FreeExtentCount())

	// a combined 1000-byte request fits in neither 600-byte extent
	// alone and must be satisfied by recursive bisection
	var positions []int64
	err := a.NewBlocks([]int64{500, 500}, func(i int, off int64) {
		positions = append(positions, off)
	})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.NotEqual(t, positions[0], positions[1])
}

func TestDiskAllocatorFreeDisjointInvariant(t *testing.T) {
	a := NewDiskAllocator(0, 1<<16, false, nil)
	var offsets []int64
	require.NoError(t, a.NewBlocks([]int64{4096, 4096, 4096, 4096}, func(i int, off int64) {
		offsets = append(offsets, off)
	}))
	// free out of order, leaving gaps then closing them
	require.NoError(t, a.Free(offsets[2], 4096))
	require.NoError(t, a.Free(offsets[0], 4096))
	require.NoError(t, a.Free(offsets[1], 4096))
	require.NoError(t, a.Free(offsets[3], 4096))
	require.Equal(t, int64(1<<16), a.FreeBytes())
	require.Equal(t, 1, a.FreeExtentCount())
}
