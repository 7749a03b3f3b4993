// Package apperr defines the error taxonomy shared across the journaling
// core and the mapping from an error to an HTTP status code, generalizing
// the teacher's sentinel-error-plus-switch pattern (internal/service/
// errors.go and httpapi.API.handleError) into one typed error.
package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUpstreamTimeout    Code = "upstream_timeout"
	CodeUpstreamUnavail    Code = "upstream_unavailable"
	CodeStructuringFailed  Code = "structuring_failed"
	CodeInternal           Code = "internal_error"
	CodeRateLimited        Code = "rate_limited"
)

var statusByCode = map[Code]int{
	CodeValidation:        http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeConflict:          http.StatusConflict,
	CodeUpstreamTimeout:   http.StatusServiceUnavailable,
	CodeUpstreamUnavail:   http.StatusServiceUnavailable,
	CodeStructuringFailed: http.StatusOK, // handled internally, never surfaced as 5xx
	CodeInternal:          http.StatusInternalServerError,
	CodeRateLimited:       http.StatusTooManyRequests,
}

// Error is the machine-readable, user-safe error carried through the core.
// It wraps an optional cause for logging without ever exposing the cause's
// text to the HTTP caller.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for this error's code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func Validation(message string) *Error   { return New(CodeValidation, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }

func UpstreamTimeout(cause error) *Error {
	return Wrap(CodeUpstreamTimeout, "the language model took too long to respond", cause)
}

func UpstreamUnavailable(cause error) *Error {
	return Wrap(CodeUpstreamUnavail, "the language model is unavailable", cause)
}

func StructuringFailed(cause error) *Error {
	return Wrap(CodeStructuringFailed, "could not understand the structure of that entry", cause)
}

func Internal(cause error) *Error {
	return Wrap(CodeInternal, "an unexpected error occurred", cause)
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if e, ok := As(err); ok {
		return e.Code == code
	}
	return false
}
