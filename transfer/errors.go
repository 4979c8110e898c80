package transfer

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a service-level failure. Codes are string-based for
// debuggability and natural JSON serialization.
type ErrorCode string

const (
	// CodeBadRequest indicates the request was invalid, e.g. a query
	// referencing unknown fields. No mutation happened.
	CodeBadRequest ErrorCode = "BAD_REQUEST"

	// CodeConflict indicates the aggregate is in a state incompatible with
	// the operation. No mutation happened; the caller may retry later.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeNotFound indicates the target aggregate does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeFatal indicates a programming or configuration defect that must
	// not be retried.
	CodeFatal ErrorCode = "FATAL_ERROR"
)

// Error is the typed failure returned by API-facing operations. Raw
// infrastructure errors never cross the service boundary; they are converted
// to one of the taxonomy codes with a human-readable detail.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Detail is the human-readable description.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// BadRequest creates a validation failure.
func BadRequest(format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Detail: fmt.Sprintf(format, args...)}
}

// Conflict creates a state-conflict failure.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Detail: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found failure.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Fatal creates a non-retryable failure caused by a programming or
// configuration defect.
func Fatal(format string, args ...any) *Error {
	return &Error{Code: CodeFatal, Detail: fmt.Sprintf(format, args...)}
}

// code extracts the taxonomy code from err, or "" when err is not an Error.
func code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsBadRequest reports whether err is a validation failure.
func IsBadRequest(err error) bool { return code(err) == CodeBadRequest }

// IsConflict reports whether err is a state conflict.
func IsConflict(err error) bool { return code(err) == CodeConflict }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return code(err) == CodeNotFound }

// IsFatal reports whether err is a non-retryable defect.
func IsFatal(err error) bool { return code(err) == CodeFatal }

// ErrIllegalTransition is wrapped by every rejected state transition.
var ErrIllegalTransition = errors.New("illegal state transition")

// retryableError tags transient infrastructure failures that a retry policy
// may re-attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as a transient infrastructure failure. Pipelines use
// the marker to decide whether an aggregate stays in a retryable state.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var e *retryableError
	return errors.As(err, &e)
}
