package hooks

import (
	"errors"
	"fmt"
)

// HookError reports a failing handler. It is isolated to that one handler
// invocation: the pipeline reports it and carries on.
type HookError struct {
	// Hook is the hook point the handler was attached to.
	Hook Name

	// Plugin names the plugin that registered the handler, if any.
	Plugin string

	// Err is the handler's error, or the recovered panic value as an error.
	Err error

	// Panicked is true when the handler panicked instead of returning.
	Panicked bool
}

// Error implements the error interface.
func (e *HookError) Error() string {
	kind := "failed"
	if e.Panicked {
		kind = "panicked"
	}
	if e.Plugin != "" {
		return fmt.Sprintf("hook %s (plugin %s) %s: %v", e.Hook, e.Plugin, kind, e.Err)
	}
	return fmt.Sprintf("hook %s %s: %v", e.Hook, kind, e.Err)
}

// Unwrap returns the underlying handler error.
func (e *HookError) Unwrap() error {
	return e.Err
}

// IsHookError returns true if err is (or wraps) a HookError.
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}
