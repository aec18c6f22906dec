// Package errkind defines the fixed error taxonomy shared by every runtime
// component: every public operation in the object runtime returns either a
// value or one of these kinds, never a bare native panic.
package errkind

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the fixed error categories the runtime can report.
type Kind int

const (
	NotFound Kind = iota
	AlreadyExists
	TypeMismatch
	OutOfRange
	ArityMismatch
	NotCallable
	Destroyed
	Dangling
	TooManyArgs
	InvalidArgument
	ResourceExhausted
	Transport
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case TypeMismatch:
		return "TypeMismatch"
	case OutOfRange:
		return "OutOfRange"
	case ArityMismatch:
		return "ArityMismatch"
	case NotCallable:
		return "NotCallable"
	case Destroyed:
		return "Destroyed"
	case Dangling:
		return "Dangling"
	case TooManyArgs:
		return "TooManyArgs"
	case InvalidArgument:
		return "InvalidArgument"
	case ResourceExhausted:
		return "ResourceExhausted"
	case Transport:
		return "Transport"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error wraps a Kind with the operation that raised it and, optionally, an
// underlying cause from outside the runtime (an OS or protocol error).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a plain Error carrying no underlying cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap attaches op and kind to an externally-sourced error (a plugin's
// transport failure, an OS syscall failure), preserving it as the cause via
// github.com/pkg/errors so callers further up the stack still see a stack
// trace with errors.Cause/errors.Wrap.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Wrap(cause, op)}
}

// Is reports whether err (or anything it wraps) is an *Error of kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
