package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWBTLFileReadWriteRoundTrip(t *testing.T) {
	storage := NewMemFile(0)
	w := NewWBTLFile(storage, 4096) // small super-blocks to exercise flushing in a unit test
	require.NoError(t, w.SetSize(1 << 20))

	ctx := context.Background()
	data := []byte("logical offsets never equal physical offsets here")
	_, err := w.WriteAt(ctx, data, 1000)
	require.NoError(t, err)

	out := make([]byte, len(data))
	_, err = w.ReadAt(ctx, out, 1000)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestWBTLFileFlushesOnSuperBlockFill(t *testing.T) {
	storage := NewMemFile(0)
	w := NewWBTLFile(storage, 256)
	require.NoError(t, w.SetSize(1<<20))

	chunk := make([]byte, 200)
	for i := range chunk {
		chunk[i] = byte(i)
	}

	// three 200-byte writes can't all fit in one 256-byte super-block,
	// forcing at least one flush to storage
	for i := 0; i < 3; i++ {
		_, err := w.WriteAt(context.Background(), chunk, int64(i*1000))
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		out := make([]byte, len(chunk))
		_, err := w.ReadAt(context.Background(), out, int64(i*1000))
		require.NoError(t, err)
		require.Equal(t, chunk, out)
	}
}

func TestWBTLFileOverwriteFreesOldRegion(t *testing.T) {
	storage := NewMemFile(0)
	w := NewWBTLFile(storage, 4096)
	require.NoError(t, w.SetSize(1 << 20))

	first := []byte("first-version")
	second := []byte("second-version-longer")

	_, err := w.WriteAt(context.Background(), first, 0)
	require.NoError(t, err)
	_, err = w.WriteAt(context.Background(), second, 0)
	require.NoError(t, err)

	out := make([]byte, len(second))
	_, err = w.ReadAt(context.Background(), out, 0)
	require.NoError(t, err)
	require.Equal(t, second, out)
}

func TestWBTLFileSetSizeRejectsShrink(t *testing.T) {
	storage := NewMemFile(0)
	w := NewWBTLFile(storage, 4096)
	require.NoError(t, w.SetSize(1 << 20))
	require.Error(t, w.SetSize(100))
}
