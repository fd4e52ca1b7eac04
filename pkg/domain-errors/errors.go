// Package domainerrors defines the coded error type shared by all services.
//
// Services create errors with New/Wrap and handlers translate them to HTTP
// via pkg/platform/httputil.WriteError. Stores do not use this package; they
// return pkg/platform/sentinel errors which services translate into coded
// errors at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and branching.
type Code string

const (
	// CodeBadRequest covers malformed or semantically invalid requests.
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers field-level input failures (email shape,
	// password complexity, missing required fields).
	CodeValidation Code = "validation_error"
	// CodeUnauthorized means no valid session.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means the role or university scope denies the action.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the entity is absent or soft-deleted.
	CodeNotFound Code = "not_found"
	// CodeConflict covers uniqueness violations such as a duplicate
	// student number or a university with dependent rows.
	CodeConflict Code = "conflict"
	// CodeRateLimited means a fixed-window limit was exceeded.
	CodeRateLimited Code = "rate_limited"
	// CodeUnavailable means an upstream collaborator (email provider,
	// object storage) failed.
	CodeUnavailable Code = "unavailable"
	// CodeInternal is everything else. Its message is never returned to
	// clients, only logged.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to log; whether it is safe
// to return to clients is decided by the HTTP layer based on the code.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New creates a coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for readability at call sites.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
