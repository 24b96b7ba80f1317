package plumcast

import "github.com/pkg/errors"

// ErrorKind classifies a plumcast failure.
type ErrorKind int

const (
	// InvalidInput marks a malformed frame or impossible configuration.
	InvalidInput ErrorKind = iota
	// InconsistentState marks an internal invariant violated, e.g. a
	// double-register or deregister of an absent node; fatal for the
	// Service.
	InconsistentState
	// Other covers transport errors, queue overflow, unexpected EOF;
	// surfaces upward at the Service.
	Other
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case InconsistentState:
		return "InconsistentState"
	default:
		return "Other"
	}
}

// Error is this library's error type: an ErrorKind plus the underlying
// cause, unwrappable through the standard error chain.
type Error struct {
	Kind  ErrorKind
	cause error
}

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// wrapErr annotates cause with an ErrorKind, using pkg/errors to attach
// a stack trace at the wrap site.
func wrapErr(kind ErrorKind, cause error, msg string) *Error {
	return newError(kind, errors.Wrap(cause, msg))
}
