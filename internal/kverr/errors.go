// Package kverr defines the coded errors returned by filekv.
//
// Every error carries a stable code of the form KV-<AREA>-<NNNN>. The
// leading digit of the numeric part follows HTTP conventions: 4xxx errors
// are caused by the caller and can be retried with corrected input, 5xxx
// errors come from the storage layer.
package kverr

import (
	"errors"
	"fmt"
)

// Error is a filekv error with a structured code.
type Error struct {
	Code    string // Error code (e.g., "KV-PATH-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error with the given code and message.
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details string) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// Wrap returns a copy of the error wrapping the given cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrapf is Wrap with formatted details.
func (e *Error) Wrapf(cause error, format string, args ...any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Code extracts the error code from err, or "" if err is not an *Error.
func Code(err error) string {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Code
	}
	return ""
}

// DetailsOf returns the Details of the first *Error in err's chain.
func DetailsOf(err error) string {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Details
	}
	return ""
}

// IsFatal reports whether err leaves the store unable to persist further
// mutations.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPersistenceFailure)
}

// Caller errors.
var (
	// ErrConfig indicates a missing or invalid construction parameter.
	ErrConfig = New("KV-CONF-4000", "invalid configuration")

	// ErrInvalidKey indicates a key that does not form a valid dot path.
	ErrInvalidKey = New("KV-KEY-4001", "invalid key")

	// ErrUnsupportedValue indicates a value that cannot be stored in the document.
	ErrUnsupportedValue = New("KV-VAL-4002", "unsupported value")

	// ErrPathConflict indicates an intermediate path segment holding a
	// non-mapping value. Details carry the conflicting dot-joined prefix.
	ErrPathConflict = New("KV-PATH-4090", "path segment is not a mapping")
)

// Storage errors.
var (
	// ErrDecode indicates the on-disk document exists but cannot be decoded.
	ErrDecode = New("KV-DEC-4220", "cannot decode document")

	// ErrPersistenceFailure indicates a failed persistence cycle. It is fatal:
	// the store refuses further mutations once it has been reported.
	ErrPersistenceFailure = New("KV-PERS-5000", "persistence failure")

	// ErrClosed indicates use of a store after Close.
	ErrClosed = New("KV-STORE-5030", "store closed")
)
