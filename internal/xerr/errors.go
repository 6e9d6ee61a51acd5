// Package xerr defines the error taxonomy surfaced by the snapshot transfer
// engine (see §7 of the design: path-parse, backend-uninitialized,
// capacity-exceeded, checksum-mismatch, empty-remote, lock-contention, io,
// cancelled). Callers type-switch or use errors.As/Is against these kinds
// rather than matching on message text.
package xerr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPathParse
	KindBackendUninitialized
	KindCapacityExceeded
	KindChecksumMismatch
	KindEmptyRemote
	KindLockContention
	KindIO
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindPathParse:
		return "path-parse"
	case KindBackendUninitialized:
		return "backend-uninitialized"
	case KindCapacityExceeded:
		return "capacity-exceeded"
	case KindChecksumMismatch:
		return "checksum-mismatch"
	case KindEmptyRemote:
		return "empty-remote"
	case KindLockContention:
		return "lock-contention"
	case KindIO:
		return "io"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the engine's error taxonomy.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// Retryable reports whether the coordinator may usefully re-issue the task
// that produced this error. Only lock-contention during move is retryable
// per §7's propagation policy.
func (e *Error) Retryable() bool { return e.kind == KindLockContention }

func New(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: errors.WithStack(err)}
}

// Is reports whether err (or any error it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.kind == kind {
				return true
			}
			err = e.err
			continue
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			return false
		}
		err = cause
	}
	return false
}

// KindOf extracts the Kind carried by err, or KindUnknown if none.
func KindOf(err error) Kind {
	for err != nil {
		if as, ok := err.(*Error); ok {
			return as.kind
		}
		err = errors.Unwrap(err)
	}
	return KindUnknown
}

// Retryable reports whether err (transitively) is a retryable engine error.
func Retryable(err error) bool {
	for err != nil {
		if as, ok := err.(*Error); ok {
			return as.Retryable()
		}
		err = errors.Unwrap(err)
	}
	return false
}
