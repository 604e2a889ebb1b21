package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFileReadWriteRoundTrip(t *testing.T) {
	f := NewMemFile(4096)
	ctx := context.Background()

	data := []byte("hello, external memory")
	n, err := f.WriteAt(ctx, data, 100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = f.ReadAt(ctx, out, 100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestMemFileWritePastEndFails(t *testing.T) {
	f := NewMemFile(10)
	_, err := f.WriteAt(context.Background(), make([]byte, 20), 0)
	require.Error(t, err)
}

func TestMemFileSetSizeGrowsAndPreservesData(t *testing.T) {
	f := NewMemFile(16)
	_, err := f.WriteAt(context.Background(), []byte("abcd"), 0)
	require.NoError(t, err)

	require.NoError(t, f.SetSize(64))
	require.Equal(t, int64(64), f.Size())

	out := make([]byte, 4)
	_, err = f.ReadAt(context.Background(), out, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), out)
}

func TestMemFileDiscardZeroes(t *testing.T) {
	f := NewMemFile(4096)
	_, err := f.WriteAt(context.Background(), []byte("xxxx"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Discard(0, 4))

	out := make([]byte, 4)
	_, err = f.ReadAt(context.Background(), out, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, out)
}

func TestMemFileCrossShardReadWrite(t *testing.T) {
	// a write spanning a 64KB shard boundary must still be a single
	// atomic-looking copy from the caller's point of view
	f := NewMemFile(3 * memShardSize)
	off := int64(memShardSize - 10)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	_, err := f.WriteAt(context.Background(), data, off)
	require.NoError(t, err)

	out := make([]byte, 20)
	_, err = f.ReadAt(context.Background(), out, off)
	require.NoError(t, err)
	require.Equal(t, data, out)
}
