package file

import (
	"context"
	"os"

	emdisk "github.com/behrlich/go-emdisk"
	"github.com/behrlich/go-emdisk/internal/logging"
	"golang.org/x/sys/unix"
)

// SyncFile is the POSIX synchronous Backend: plain pread(2)/pwrite(2)
// against an *os.File, invoked directly on the calling goroutine. It is
// the backend a DiskQueue's worker pool calls into to turn queued
// requests into blocking syscalls off the submitter's goroutine.
type SyncFile struct {
	f         *os.File
	direct    bool
	alignment int64
}

// SyncFileConfig configures how a SyncFile opens its path.
type SyncFileConfig struct {
	Path      string
	Flags     emdisk.OpenFlags
	Alignment int64 // required alignment when Flags has Direct set
}

// OpenSyncFile opens path per cfg, applying O_DIRECT/O_SYNC/O_CREAT as
// requested by cfg.Flags. If opening with O_DIRECT fails and
// RequireDirect is not set, it logs a warning and opens the file again
// for buffered I/O.
func OpenSyncFile(cfg SyncFileConfig) (*SyncFile, error) {
	osFlags := os.O_RDWR
	switch {
	case cfg.Flags.Has(emdisk.ReadOnly):
		osFlags = os.O_RDONLY
	case cfg.Flags.Has(emdisk.WriteOnly):
		osFlags = os.O_WRONLY
	}
	if cfg.Flags.Has(emdisk.Create) {
		osFlags |= os.O_CREATE
	}
	if cfg.Flags.Has(emdisk.Truncate) {
		osFlags |= os.O_TRUNC
	}
	if cfg.Flags.Has(emdisk.Sync) {
		osFlags |= os.O_SYNC
	}
	if cfg.Flags.Has(emdisk.Direct) {
		osFlags |= unix.O_DIRECT
	}

	direct := cfg.Flags.Has(emdisk.Direct)
	f, err := os.OpenFile(cfg.Path, osFlags, 0644)
	if err != nil && direct && !cfg.Flags.Has(emdisk.RequireDirect) {
		logging.Default().Warn("O_DIRECT open failed, falling back to buffered I/O", "path", cfg.Path, "err", err)
		direct = false
		f, err = os.OpenFile(cfg.Path, osFlags&^unix.O_DIRECT, 0644)
	}
	if err != nil {
		return nil, emdisk.NewIoError("file.OpenSyncFile", -1, err)
	}

	alignment := cfg.Alignment
	if alignment <= 0 {
		if direct || cfg.Flags.Has(emdisk.RequireDirect) {
			alignment = 4096
		} else {
			alignment = 1
		}
	}

	if !cfg.Flags.Has(emdisk.NoLock) {
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			return nil, emdisk.NewIoError("file.OpenSyncFile", -1, err)
		}
	}

	return &SyncFile{f: f, direct: direct, alignment: alignment}, nil
}

// ReadAt implements Backend via pread(2). ctx cancellation is not
// observed mid-syscall; callers relying on cancellation should race
// this call against ctx.Done() at a higher layer (the ioqueue worker
// pool does this by abandoning the result, not by killing the syscall).
func (s *SyncFile) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := checkAligned("file.SyncFile.ReadAt", s.alignment, off, len(p)); err != nil {
		return 0, err
	}
	n, err := unix.Pread(int(s.f.Fd()), p, off)
	if err != nil {
		return n, emdisk.NewIoError("file.SyncFile.ReadAt", -1, err)
	}
	return n, nil
}

// WriteAt implements Backend via pwrite(2).
func (s *SyncFile) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := checkAligned("file.SyncFile.WriteAt", s.alignment, off, len(p)); err != nil {
		return 0, err
	}
	n, err := unix.Pwrite(int(s.f.Fd()), p, off)
	if err != nil {
		return n, emdisk.NewIoError("file.SyncFile.WriteAt", -1, err)
	}
	return n, nil
}

// Size returns the file's current length via fstat(2).
func (s *SyncFile) Size() int64 {
	fi, err := s.f.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// SetSize grows or shrinks the file via fallocate(2)/ftruncate(2).
func (s *SyncFile) SetSize(n int64) error {
	cur := s.Size()
	if n > cur {
		if err := unix.Fallocate(int(s.f.Fd()), 0, 0, n); err != nil {
			if err := s.f.Truncate(n); err != nil {
				return emdisk.NewIoError("file.SyncFile.SetSize", -1, err)
			}
		}
		return nil
	}
	if err := s.f.Truncate(n); err != nil {
		return emdisk.NewIoError("file.SyncFile.SetSize", -1, err)
	}
	return nil
}

// Discard punches a hole via fallocate(2) FALLOC_FL_PUNCH_HOLE, falling
// back to a no-op when the filesystem doesn't support it.
func (s *SyncFile) Discard(off, length int64) error {
	const flPunchHole = 0x02
	const flKeepSize = 0x01
	err := unix.Fallocate(int(s.f.Fd()), flPunchHole|flKeepSize, off, length)
	if err != nil {
		return nil
	}
	return nil
}

// Sync calls fsync(2).
func (s *SyncFile) Sync() error {
	if err := s.f.Sync(); err != nil {
		return emdisk.NewIoError("file.SyncFile.Sync", -1, err)
	}
	return nil
}

// Close releases the flock and closes the file descriptor.
func (s *SyncFile) Close() error {
	if err := s.f.Close(); err != nil {
		return emdisk.NewIoError("file.SyncFile.Close", -1, err)
	}
	return nil
}

// AlignmentGranularity returns the configured direct-I/O alignment, or
// 1 when the file was not opened with Direct.
func (s *SyncFile) AlignmentGranularity() int64 { return s.alignment }

var _ Backend = (*SyncFile)(nil)
