// Package emdisk is the root of the external-memory block I/O
// substrate: the error taxonomy, disk configuration, process-wide
// statistics, and the Environment value that replaces the package-level
// singletons a naive port would otherwise carry forward.
package emdisk

import (
	"errors"
	"fmt"
)

// Code enumerates the high-level error categories every boundary in
// this module returns.
type Code string

const (
	CodeIoError            Code = "io error"
	CodeAlignmentError     Code = "alignment error"
	CodeOutOfExternalMemory Code = "out of external memory"
	CodeDoubleFree         Code = "double free"
	CodeCorruption         Code = "corruption"
	CodeStateViolation     Code = "state violation"
	CodeCancelled          Code = "cancelled"
	CodeInvariantFailure   Code = "invariant failure"
)

// Error is the structured error type every package in go-emdisk
// constructs instead of ad hoc fmt.Errorf calls.
type Error struct {
	Op    string // operation that failed, e.g. "block.NewBlocks"
	Code  Code
	Disk  int // disk index, -1 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Disk >= 0 {
		if e.Inner != nil {
			return fmt.Sprintf("emdisk: %s: disk=%d %s: %v", e.Op, e.Disk, e.Msg, e.Inner)
		}
		return fmt.Sprintf("emdisk: %s: disk=%d %s", e.Op, e.Disk, e.Msg)
	}
	if e.Inner != nil {
		return fmt.Sprintf("emdisk: %s: %s: %v", e.Op, e.Msg, e.Inner)
	}
	return fmt.Sprintf("emdisk: %s: %s", e.Op, e.Msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is(err, &Error{Code: CodeX}) match on code alone.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New constructs a plain *Error with no disk context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Disk: -1, Msg: msg}
}

// NewIoError wraps an I/O failure at a given disk index.
func NewIoError(op string, disk int, inner error) *Error {
	return &Error{Op: op, Code: CodeIoError, Disk: disk, Msg: "i/o failed", Inner: inner}
}

// NewAlignmentError reports a buffer or offset alignment violation.
func NewAlignmentError(op string, disk int, msg string) *Error {
	return &Error{Op: op, Code: CodeAlignmentError, Disk: disk, Msg: msg}
}

// NewOutOfExternalMemory reports that no disk had enough free space and
// autogrow was disabled.
func NewOutOfExternalMemory(op string, requested int64) *Error {
	return &Error{Op: op, Code: CodeOutOfExternalMemory, Disk: -1, Msg: fmt.Sprintf("requested %d bytes", requested)}
}

// NewDoubleFree reports a disk-allocator free-extent overlap.
func NewDoubleFree(op string, disk int, msg string) *Error {
	return &Error{Op: op, Code: CodeDoubleFree, Disk: disk, Msg: msg}
}

// NewCorruption reports a disk-allocator invariant violation that is
// not specifically a double free.
func NewCorruption(op string, disk int, msg string) *Error {
	return &Error{Op: op, Code: CodeCorruption, Disk: disk, Msg: msg}
}

// NewStateViolation reports an operation attempted outside its legal
// state (e.g. acquiring an uninitialized swappable block).
func NewStateViolation(op string, msg string) *Error {
	return &Error{Op: op, Code: CodeStateViolation, Disk: -1, Msg: msg}
}

// NewCancelled marks a request that completed via cancellation.
func NewCancelled(op string) *Error {
	return &Error{Op: op, Code: CodeCancelled, Disk: -1, Msg: "request cancelled"}
}

// NewInvariantFailure reports an internal assertion failure. It is not
// recoverable; callers should treat it as a bug report, not a retryable
// condition.
func NewInvariantFailure(op string, msg string) *Error {
	return &Error{Op: op, Code: CodeInvariantFailure, Disk: -1, Msg: msg}
}

// WrapError re-tags an existing error with a new operation name,
// preserving its code and disk context when the inner error is already
// a *Error, or classifying it as a generic CodeIoError otherwise.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var e *Error
	if errors.As(inner, &e) {
		return &Error{Op: op, Code: e.Code, Disk: e.Disk, Msg: e.Msg, Inner: e.Inner}
	}
	return &Error{Op: op, Code: CodeIoError, Disk: -1, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
