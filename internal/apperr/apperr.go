// Package apperr defines the error kinds shared by the CalDAV and REST
// surfaces and their HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for response mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidID
	KindAuthentication
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidID:
		return "invalid_id"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code used for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidID:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is safe to return to
// clients; Err carries the underlying cause for logs.
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

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// InvalidID reports an identifier that does not parse as a UUID.
func InvalidID(cause error) *Error {
	return &Error{Kind: KindInvalidID, Message: "Invalid UUID", Err: cause}
}

func Authentication(format string, args ...any) *Error {
	return newf(KindAuthentication, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// Internal wraps an unexpected failure. The cause is logged, never sent.
func Internal(op string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: cause}
}

// KindOf reports the kind of err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// PublicMessage returns the client-facing message for err. Internal errors
// never expose their cause.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return "Internal server error"
	}
	return appErr.Message
}
