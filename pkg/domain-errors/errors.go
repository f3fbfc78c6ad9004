// Package dErrors provides coded domain errors shared across service
// boundaries. Stores return sentinel or wrapped infrastructure errors;
// services translate them into coded errors; transport maps codes onto
// HTTP statuses. The code travels with the error through wrapping so
// callers can branch on HasCode without string matching.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies the domain-level failure class. The string value is the
// machine-readable code surfaced in API error envelopes.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
)

// Error is a coded domain error. Construct with New or Wrap.
type Error struct {
	code  Code
	msg   string
	cause error
}

// New creates a coded error with a caller-facing message.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Unwrap so infrastructure sentinels remain
// matchable with errors.Is.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{code: code, msg: msg, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another coded error with the same code and message, so tests
// can assert with errors.Is against a freshly constructed error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code && e.msg == t.msg
}

// Code returns the failure class of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the caller-facing message without the wrapped cause.
func (e *Error) Message() string { return e.msg }

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for uncoded errors so unexpected failures never leak detail outward.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
