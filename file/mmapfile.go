package file

import (
	"context"
	"os"
	"sync"

	emdisk "github.com/behrlich/go-emdisk"
	"golang.org/x/sys/unix"
)

// MmapFile is a Backend over a memory-mapped file. Reads and writes are
// plain byte copies against the mapping; SetSize remaps when the
// requested size differs from the current mapping.
type MmapFile struct {
	mu   sync.RWMutex
	f    *os.File
	data []byte
}

// OpenMmapFile opens path (creating it if cfg has Create set) and maps
// its full, pre-sized extent.
func OpenMmapFile(cfg SyncFileConfig) (*MmapFile, error) {
	osFlags := os.O_RDWR
	if cfg.Flags.Has(emdisk.Create) {
		osFlags |= os.O_CREATE
	}
	f, err := os.OpenFile(cfg.Path, osFlags, 0644)
	if err != nil {
		return nil, emdisk.NewIoError("file.OpenMmapFile", -1, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, emdisk.NewIoError("file.OpenMmapFile", -1, err)
	}

	m := &MmapFile{f: f}
	if fi.Size() > 0 {
		if err := m.mapLocked(fi.Size()); err != nil {
			f.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *MmapFile) mapLocked(size int64) error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return emdisk.NewIoError("file.MmapFile.mapLocked", -1, err)
		}
		m.data = nil
	}
	if size == 0 {
		return nil
	}
	data, err := unix.Mmap(int(m.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return emdisk.NewIoError("file.MmapFile.mapLocked", -1, err)
	}
	m.data = data
	return nil
}

// ReadAt implements Backend.
func (m *MmapFile) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off < 0 || off >= int64(len(m.data)) {
		return 0, emdisk.New("file.MmapFile.ReadAt", emdisk.CodeIoError, "read past end of mapping")
	}
	n := copy(p, m.data[off:])
	return n, nil
}

// WriteAt implements Backend.
func (m *MmapFile) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, emdisk.New("file.MmapFile.WriteAt", emdisk.CodeIoError, "write past end of mapping")
	}
	n := copy(m.data[off:], p)
	return n, nil
}

// Size returns the current mapping length.
func (m *MmapFile) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// SetSize truncates the backing file and remaps it.
func (m *MmapFile) SetSize(n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.f.Truncate(n); err != nil {
		return emdisk.NewIoError("file.MmapFile.SetSize", -1, err)
	}
	return m.mapLocked(n)
}

// Discard zeroes the given mapped range in place.
func (m *MmapFile) Discard(off, length int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	end := off + length
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	for i := off; i < end; i++ {
		m.data[i] = 0
	}
	return nil
}

// Sync calls msync(2) MS_SYNC over the whole mapping.
func (m *MmapFile) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return emdisk.NewIoError("file.MmapFile.Sync", -1, err)
	}
	return nil
}

// Close unmaps and closes the underlying file.
func (m *MmapFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return emdisk.NewIoError("file.MmapFile.Close", -1, err)
		}
		m.data = nil
	}
	if err := m.f.Close(); err != nil {
		return emdisk.NewIoError("file.MmapFile.Close", -1, err)
	}
	return nil
}

// AlignmentGranularity returns 1: mapped-memory access has no alignment
// requirement of its own beyond what the page fault path already gives.
func (m *MmapFile) AlignmentGranularity() int64 { return 1 }

var _ Backend = (*MmapFile)(nil)
