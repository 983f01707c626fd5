package engine

import (
	"errors"
	"fmt"
)

// PassError reports a resolution pass that could not produce a tag list.
//
// Per-entry and per-handler failures never surface as a PassError; they are
// reported as Diagnostics and the pass carries on without the offending
// entry. A PassError means the pass as a whole was abandoned:
//   - Invalid render context: the caller asked for an unknown target
//   - Aborted: the caller's context ended mid-pass
//   - Hash failed: the final tag list could not be canonicalised
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Message is a human-readable description.
	Message string

	// PassID identifies the pass, when one was started.
	PassID string

	// Err is the underlying cause, if any.
	Err error
}

// PassErrorCode categorizes pass errors.
type PassErrorCode string

const (
	// ErrCodeInvalidRender indicates an unknown render context.
	ErrCodeInvalidRender PassErrorCode = "INVALID_RENDER_CONTEXT"

	// ErrCodeAborted indicates the caller's context ended mid-pass.
	ErrCodeAborted PassErrorCode = "PASS_ABORTED"

	// ErrCodeHashFailed indicates the pass hash could not be computed.
	ErrCodeHashFailed PassErrorCode = "HASH_FAILED"
)

// Error implements the error interface.
func (e *PassError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.PassID != "" {
		return fmt.Sprintf("%s: %s (pass=%s)", e.Code, msg, e.PassID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *PassError) Unwrap() error {
	return e.Err
}

// IsAborted returns true if err is a pass aborted by its context.
// Uses errors.As to handle wrapped errors.
func IsAborted(err error) bool {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeAborted
	}
	return false
}

func newAbortedError(passID string, err error) *PassError {
	return &PassError{
		Code:    ErrCodeAborted,
		Message: "resolution pass aborted",
		PassID:  passID,
		Err:     err,
	}
}
