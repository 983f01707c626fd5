package entry

import (
	"errors"
	"fmt"
)

// EntryDisposedError is returned by every operation on a disposed handle.
// Disposed handles are permanently invalid; this is a caller bug and is never
// swallowed by the engine.
type EntryDisposedError struct {
	// ID is the id the entry had while it was live.
	ID int64

	// Op names the operation that was attempted (patch, dispose, ...).
	Op string
}

// Error implements the error interface.
func (e *EntryDisposedError) Error() string {
	return fmt.Sprintf("entry %d: %s on disposed entry", e.ID, e.Op)
}

// IsDisposed returns true if err is (or wraps) an EntryDisposedError.
func IsDisposed(err error) bool {
	var de *EntryDisposedError
	return errors.As(err, &de)
}
