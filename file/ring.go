package file

// ring is the interface AsyncFile needs from an io_uring binding:
// submit a fixed-size batch of read/write operations against one file
// descriptor and collect their completions. It generalizes the
// teacher's uring.Ring (which speaks UblksrvIOCmd/UblksrvCtrlCmd
// control-plane commands) down to plain byte-range reads and writes,
// since AsyncFile has no ublk control plane to drive.
//
// The real (Linux, giouring-backed) and stub (every other GOOS)
// implementations both satisfy this interface, mirroring the teacher's
// iouring.go/iouring_stub.go split.
type ring interface {
	// Close releases the ring's kernel resources.
	Close() error

	// PrepareRead stages a read of len(p) bytes at off into p, tagged
	// with userData, without submitting it to the kernel.
	PrepareRead(fd int, p []byte, off int64, userData uint64) error

	// PrepareWrite stages a write of p at off, tagged with userData.
	PrepareWrite(fd int, p []byte, off int64, userData uint64) error

	// Submit flushes every staged operation with one syscall and
	// returns the number submitted.
	Submit() (int, error)

	// WaitCompletion blocks for at least one completion and returns
	// every completion available without further blocking.
	WaitCompletion() ([]ringResult, error)
}

// ringResult is one completion: the userData tag from the matching
// Prepare call and the syscall-style result (bytes transferred, or a
// negative errno-shaped value on failure).
type ringResult struct {
	UserData uint64
	Res      int32
}
