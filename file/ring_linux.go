//go:build linux

package file

import (
	"fmt"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
)

// giouringRing adapts giouring.Ring to the ring interface. giouring
// exposes the liburing submission/completion-queue calls directly
// (GetSQE to stage an SQE, Submit to enter the kernel, PeekCQE/WaitCQE
// plus SeenCQE to drain completions), so every ring method here is a
// thin translation into that shape.
type giouringRing struct {
	r *giouring.Ring
}

func newRing(entries uint32) (ring, error) {
	r, err := giouring.CreateRing(entries)
	if err != nil {
		return nil, fmt.Errorf("create io_uring: %w", err)
	}
	return &giouringRing{r: r}, nil
}

func (g *giouringRing) Close() error {
	g.r.QueueExit()
	return nil
}

func (g *giouringRing) PrepareRead(fd int, p []byte, off int64, userData uint64) error {
	sqe := g.r.GetSQE()
	if sqe == nil {
		return fmt.Errorf("io_uring submission queue full")
	}
	var ptr unsafe.Pointer
	if len(p) > 0 {
		ptr = unsafe.Pointer(&p[0])
	}
	sqe.PrepareRead(int32(fd), uintptr(ptr), uint32(len(p)), uint64(off))
	sqe.UserData = userData
	return nil
}

func (g *giouringRing) PrepareWrite(fd int, p []byte, off int64, userData uint64) error {
	sqe := g.r.GetSQE()
	if sqe == nil {
		return fmt.Errorf("io_uring submission queue full")
	}
	var ptr unsafe.Pointer
	if len(p) > 0 {
		ptr = unsafe.Pointer(&p[0])
	}
	sqe.PrepareWrite(int32(fd), uintptr(ptr), uint32(len(p)), uint64(off))
	sqe.UserData = userData
	return nil
}

func (g *giouringRing) Submit() (int, error) {
	n, err := g.r.Submit()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (g *giouringRing) WaitCompletion() ([]ringResult, error) {
	cqe, err := g.r.WaitCQE()
	if err != nil {
		return nil, err
	}
	out := []ringResult{{UserData: cqe.UserData, Res: cqe.Res}}
	g.r.CQESeen(cqe)

	for {
		next, err := g.r.PeekCQE()
		if err != nil || next == nil {
			break
		}
		out = append(out, ringResult{UserData: next.UserData, Res: next.Res})
		g.r.CQESeen(next)
	}
	return out, nil
}
