// Package file implements the C1 file backends: synchronous POSIX
// read/write, an io_uring-backed async backend, a memory-mapped
// backend, an in-memory mock for tests, and a write-buffered
// translation layer that coalesces small logical writes into large
// super-block writes.
package file

import (
	"context"
	"fmt"

	emdisk "github.com/behrlich/go-emdisk"
)

// Backend is the capability interface the queue engine dispatches
// against. Every concrete backend (sync, async io_uring, mmap, memory,
// WBTL) implements it; the queue engine never type-switches on the
// concrete backend, only on this interface.
type Backend interface {
	// ReadAt performs a synchronous read of len(p) bytes at off. A short
	// read that is not at end-of-file is reported as an *emdisk.Error
	// with Code CodeIoError, never silently returned as a partial n.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// WriteAt performs a synchronous write of p at off.
	WriteAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the current logical size of the backend in bytes.
	Size() int64

	// SetSize grows or shrinks the backend to n bytes. Growing may or
	// may not zero the new region; shrinking below in-use ranges is
	// undefined, matching the original contract.
	SetSize(n int64) error

	// Discard informs the backend that [off, off+length) is unused, for
	// backends that can punch holes. Backends that cannot support this
	// return nil (a no-op), never an error.
	Discard(off, length int64) error

	// Sync flushes any buffered state to durable storage.
	Sync() error

	// Close releases the backend's resources. Closing a backend while
	// any request still references it is a contract violation; backends
	// should refuse (return a StateViolation) rather than silently
	// leaking or corrupting in-flight I/O.
	Close() error

	// AlignmentGranularity returns the byte alignment this backend
	// requires of buffers and offsets for direct (unbuffered) I/O. A
	// granularity of 1 means no alignment is required.
	AlignmentGranularity() int64
}

// checkAligned validates off and len(p) against granularity, returning
// an *emdisk.Error(CodeAlignmentError) rather than silently truncating.
func checkAligned(op string, granularity int64, off int64, length int) error {
	if granularity <= 1 {
		return nil
	}
	if off%granularity != 0 {
		return emdisk.NewAlignmentError(op, -1, fmt.Sprintf("offset %d not aligned to %d", off, granularity))
	}
	if int64(length)%granularity != 0 {
		return emdisk.NewAlignmentError(op, -1, fmt.Sprintf("length %d not aligned to %d", length, granularity))
	}
	return nil
}
