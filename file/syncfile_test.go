package file

import (
	"context"
	"path/filepath"
	"testing"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/stretchr/testify/require"
)

func TestSyncFileReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := OpenSyncFile(SyncFileConfig{Path: path, Flags: emdisk.Create | emdisk.NoLock})
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.SetSize(4096))
	require.Equal(t, int64(4096), f.Size())

	ctx := context.Background()
	data := []byte("stxxl-grounded go io")
	n, err := f.WriteAt(ctx, data, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = f.ReadAt(ctx, out, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestSyncFileSyncAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := OpenSyncFile(SyncFileConfig{Path: path, Flags: emdisk.Create | emdisk.NoLock})
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
}

func TestSyncFileAlignmentEnforced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := OpenSyncFile(SyncFileConfig{Path: path, Flags: emdisk.Create | emdisk.NoLock, Alignment: 512})
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.SetSize(4096))

	_, err = f.WriteAt(context.Background(), make([]byte, 100), 0)
	require.Error(t, err)
	var de *emdisk.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, emdisk.CodeAlignmentError, de.Code)
}
