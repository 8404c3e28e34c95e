// Package apperr defines the single failure shape every service returns:
// a discriminated kind plus a caller-safe message. The HTTP layer maps
// kinds to status codes and never inspects anything else.
package apperr

import (
	"errors"
	"fmt"
)

// Kind discriminates failure categories.
type Kind int

const (
	// KindInternal is an unexpected failure.
	KindInternal Kind = iota
	// KindValidation is missing or malformed input, detected before any I/O.
	KindValidation
	// KindUnauthenticated means no caller could be resolved.
	KindUnauthenticated
	// KindForbidden means the caller does not own the target.
	KindForbidden
	// KindNotFound means the target id does not exist.
	KindNotFound
	// KindAuth means the identity provider rejected the operation.
	KindAuth
	// KindStore means the task store rejected the operation.
	KindStore
)

// Error carries a kind, a caller-safe message, and an optional cause.
// The cause is for logs only; it is never written to a response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports missing or malformed input.
func Validation(message string) *Error { return New(KindValidation, message) }

// Unauthenticated reports a missing caller.
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

// Forbidden reports an ownership violation.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound reports a missing target.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Auth reports an identity provider rejection.
func Auth(message string, err error) *Error { return Wrap(KindAuth, message, err) }

// Store reports a task store rejection.
func Store(message string, err error) *Error { return Wrap(KindStore, message, err) }

// Internal reports an unexpected failure.
func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// KindOf extracts the kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf extracts the caller-safe message, defaulting to a generic one.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
