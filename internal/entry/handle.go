package entry

import "github.com/roach88/headkit/internal/ir"

// Handle is the caller's reference to a pushed entry. Once disposed, every
// method returns *EntryDisposedError.
type Handle struct {
	id    int64
	store *Store
}

// ID returns the entry id.
func (h *Handle) ID() int64 {
	return h.id
}

// Patch replaces the entry's input. The resolved input is recomputed by the
// next pass.
func (h *Handle) Patch(input ir.Object) error {
	return h.store.patch(h.id, input)
}

// Dispose runs every registered side-effect cleanup and removes the entry.
func (h *Handle) Dispose() error {
	return h.store.dispose(h.id)
}

// Entry returns a snapshot of the entry.
func (h *Handle) Entry() (*Entry, error) {
	return h.store.snapshotOne(h.id)
}

// SetSideEffect registers a cleanup closure under key, replacing any previous
// closure with the same key. Renderers use it to reverse DOM mutations.
func (h *Handle) SetSideEffect(key string, fn func()) error {
	return h.store.setSideEffect(h.id, key, fn)
}

// RunSideEffect runs and removes the cleanup registered under key. It reports
// whether one was registered. Renderers call it when a property disappears on
// re-resolution.
func (h *Handle) RunSideEffect(key string) (bool, error) {
	fn, err := h.store.takeSideEffect(h.id, key)
	if err != nil || fn == nil {
		return false, err
	}
	h.store.runEffect(h.id, key, fn)
	return true, nil
}
