//go:build !linux

package file

import emdisk "github.com/behrlich/go-emdisk"

// newRing fails on every non-Linux GOOS: io_uring is a Linux-only
// kernel facility. Callers should fall back to SyncFile.
func newRing(entries uint32) (ring, error) {
	return nil, emdisk.New("file.newRing", emdisk.CodeStateViolation, "io_uring is not supported on this platform")
}
