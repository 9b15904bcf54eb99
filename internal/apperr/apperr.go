// Package apperr defines the error kinds shared by the service layer and
// translated to HTTP statuses by the transport.
//
// Services return *Error values built with the constructors below. Callers
// compare them with errors.Is, which matches on Kind and Code, so a sentinel
// declared once (for example circulation.ErrOutOfStock) matches every error
// carrying the same code regardless of its message or wrapped cause.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error is a domain error with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage returns a copy of e with a different human-readable message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// NotFound builds a not-found error for a resource such as "book" or "fine".
func NotFound(resource string) *Error {
	return New(KindNotFound, resource+"_not_found", resource+" not found")
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Forbidden(reason string) *Error {
	return New(KindForbidden, "forbidden", reason)
}

func Unauthenticated(message string) *Error {
	return New(KindUnauthenticated, "unauthenticated", message)
}

// Store wraps a persistence failure. The cause is kept for logging and is
// never rendered to clients.
func Store(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "store_error", Message: op, Err: err}
}

// Internal reports a broken invariant that is not the caller's fault.
func Internal(message string) *Error {
	return New(KindInternal, "internal_error", message)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
