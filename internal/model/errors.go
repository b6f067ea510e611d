package model

import "fmt"

// ErrorKind classifies the failures the library surfaces to callers.
// Bind failures during probing are not errors at all; they only ever show up
// as a port being reported unavailable.
type ErrorKind int

const (
	// KindUnknown is the zero value and never produced by the library.
	KindUnknown ErrorKind = iota

	// KindLockUnavailable indicates the shared ledger lock could not be
	// acquired, because an earlier holder panicked while holding it.
	KindLockUnavailable

	// KindPortsExhausted indicates neither the scanner nor the OS query
	// produced a port that is free and not already reserved.
	KindPortsExhausted
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindLockUnavailable:
		return "lock unavailable"
	case KindPortsExhausted:
		return "ports exhausted"
	default:
		return "unknown"
	}
}

// Error is a custom error type that carries an ErrorKind.
// Two Errors match under errors.Is when their kinds are equal, which lets
// callers compare against the exported sentinels regardless of message.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a new Error that wraps an existing error.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
