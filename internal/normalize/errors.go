package normalize

import (
	"errors"
	"fmt"
	"time"
)

// NormalizationError reports a malformed entry. It is isolated to that entry:
// the pipeline drops the entry's tags for the pass and carries on.
type NormalizationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// EntryID identifies the offending entry.
	EntryID int64

	// Field is the top-level input field (or prop) at fault, if known.
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes normalization errors.
type ErrorCode string

const (
	// ErrCodeInvalidField indicates a field value of the wrong shape.
	ErrCodeInvalidField ErrorCode = "INVALID_FIELD"

	// ErrCodeResolveFailed indicates a getter or promise failed.
	ErrCodeResolveFailed ErrorCode = "RESOLVE_FAILED"

	// ErrCodeTransformFailed indicates the entry's transform panicked.
	ErrCodeTransformFailed ErrorCode = "TRANSFORM_FAILED"
)

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: entry %d field %s: %s", e.Code, e.EntryID, e.Field, msg)
	}
	return fmt.Sprintf("%s: entry %d: %s", e.Code, e.EntryID, msg)
}

// Unwrap returns the underlying cause.
func (e *NormalizationError) Unwrap() error {
	return e.Err
}

func invalidField(entryID int64, field, format string, args ...any) *NormalizationError {
	return &NormalizationError{
		Code:    ErrCodeInvalidField,
		EntryID: entryID,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsNormalizationError returns true if err is (or wraps) a NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}

// UnresolvedAsyncTimeoutError reports an entry whose deferred values did not
// settle within the configured async timeout. It is only produced when a
// timeout is configured.
type UnresolvedAsyncTimeoutError struct {
	EntryID int64
	Timeout time.Duration
}

func (e *UnresolvedAsyncTimeoutError) Error() string {
	return fmt.Sprintf("entry %d: deferred values unresolved after %s", e.EntryID, e.Timeout)
}

// IsTimeout returns true if err is (or wraps) an UnresolvedAsyncTimeoutError.
func IsTimeout(err error) bool {
	var te *UnresolvedAsyncTimeoutError
	return errors.As(err, &te)
}
