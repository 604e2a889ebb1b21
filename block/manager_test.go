package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBackend is the minimal Backend a test needs: a resizable byte
// count with no actual storage behind it.
type fakeBackend struct {
	size int64
}

func (f *fakeBackend) Size() int64 { return f.size }
func (f *fakeBackend) SetSize(n int64) error {
	f.size = n
	return nil
}

func newFakeManager(t *testing.T, numDisks int, diskSize int64) *Manager {
	t.Helper()
	backends := make([]Backend, numDisks)
	autogrow := make([]bool, numDisks)
	for i := range backends {
		backends[i] = &fakeBackend{size: diskSize}
	}
	return NewManager(backends, autogrow)
}

func TestManagerNewBlocksStriping(t *testing.T) {
	m := newFakeManager(t, 4, 1<<20)
	bids, err := m.NewBlocks(Striping, 8, 4096, 0)
	require.NoError(t, err)
	require.Len(t, bids, 8)
	for i, b := range bids {
		require.Equal(t, i%4, b.Backend)
		require.True(t, b.Valid())
	}
}

func TestManagerUsageAccounting(t *testing.T) {
	m := newFakeManager(t, 2, 1<<16)
	bids, err := m.NewBlocks(Striping, 4, 4096, 0)
	require.NoError(t, err)

	usage := m.Usage()
	require.Equal(t, int64(4*4096), usage.TotalAllocation)
	require.Equal(t, int64(4*4096), usage.CurrentAllocation)
	require.Equal(t, usage.CurrentAllocation, usage.MaximumAllocation)

	require.NoError(t, m.DeleteBlocks(bids))
	usage = m.Usage()
	require.Equal(t, int64(4*4096), usage.TotalAllocation, "total_allocation is monotone, never decreases")
	require.Equal(t, int64(0), usage.CurrentAllocation)
	require.Equal(t, int64(4*4096), usage.MaximumAllocation)
}

func TestManagerDeleteBlocksUnmanagedIsNoop(t *testing.T) {
	m := newFakeManager(t, 1, 4096)
	err := m.DeleteBlocks([]BID{{Backend: Unmanaged, Offset: 0, Size: 100}})
	require.NoError(t, err)
}

func TestManagerOutOfMemoryLeavesNoPartialAllocation(t *testing.T) {
	m := newFakeManager(t, 2, 4096) // 4096 bytes per disk, 8192 total
	_, err := m.NewBlocks(Striping, 3, 4096, 0)
	require.Error(t, err, "3 blocks of 4096 striped across 2 disks needs 8192 on one disk's share but only 4096 is free there")

	usage := m.Usage()
	require.Equal(t, int64(0), usage.CurrentAllocation, "a failed bulk allocation must not leave a partial result")
}
