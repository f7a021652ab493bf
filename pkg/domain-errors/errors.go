// Package domainerrors provides coded errors that services return and the
// transport layer translates into responses.
//
// Services classify every failure with a Code; stores and lockers return
// sentinel errors from pkg/platform/sentinel which services wrap here.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidArgument       Code = "invalid_argument"
	CodeNotFound              Code = "not_found"
	CodeInsufficientAvailable Code = "insufficient_available"
	CodeInvalidState          Code = "invalid_state"
	CodeExpired               Code = "expired"
	CodeLockTimeout           Code = "lock_timeout"
	CodePersistence           Code = "persistence_error"
	CodeInternal              Code = "internal_error"

	// Transport-level codes.
	CodeBadRequest           Code = "bad_request"
	CodeUnsupportedMediaType Code = "unsupported_media_type"
)

// Error is a coded error with a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// A nil err still yields a coded error so callers never lose the classification.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// IsRetryable reports whether a client may retry the same request later.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeLockTimeout, CodePersistence, CodeInsufficientAvailable:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a code to its transport status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientAvailable, CodeInvalidState, CodeExpired:
		return http.StatusConflict
	case CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case CodeLockTimeout, CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
