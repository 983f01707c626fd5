package hooks

import (
	"context"
	"fmt"
	"sync"
)

// Handler is a hook handler receiving the hook's context object.
type Handler[C any] func(ctx context.Context, c C) error

type handlerRef[C any] struct {
	fn      Handler[C]
	plugin  string
	removed bool
}

// Slot is the ordered list of handlers for one hook name.
//
// Thread-safety: Hook, Emit and the returned disposers are safe for
// concurrent use. Disposing a handler while an Emit on the same slot is in
// flight takes effect once every in-flight Emit has completed.
type Slot[C any] struct {
	name     Name
	mu       sync.Mutex
	handlers []*handlerRef[C]
	running  int
	pending  bool
}

// NewSlot creates an empty slot for name.
func NewSlot[C any](name Name) *Slot[C] {
	return &Slot[C]{name: name}
}

// Name returns the hook name this slot serves.
func (s *Slot[C]) Name() Name {
	return s.name
}

// Hook appends fn and returns its disposer. Calling the disposer more than
// once is harmless.
func (s *Slot[C]) Hook(fn Handler[C]) func() {
	return s.HookAs("", fn)
}

// HookAs is Hook with the registering plugin's name, used in HookError.
func (s *Slot[C]) HookAs(plugin string, fn Handler[C]) func() {
	ref := &handlerRef[C]{fn: fn, plugin: plugin}

	s.mu.Lock()
	s.handlers = append(s.handlers, ref)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(ref) })
	}
}

func (s *Slot[C]) remove(ref *handlerRef[C]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref.removed = true
	if s.running > 0 {
		s.pending = true
		return
	}
	s.compact()
}

// compact drops removed handlers. Caller holds s.mu.
func (s *Slot[C]) compact() {
	kept := s.handlers[:0]
	for _, h := range s.handlers {
		if !h.removed {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(s.handlers); i++ {
		s.handlers[i] = nil
	}
	s.handlers = kept
	s.pending = false
}

// Len returns the number of registered handlers.
func (s *Slot[C]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handlers {
		if !h.removed {
			n++
		}
	}
	return n
}

// Emit runs every handler registered when the call starts, sequentially and in
// registration order. It returns one *HookError per failing handler. Emit
// stops early only when ctx is done.
func (s *Slot[C]) Emit(ctx context.Context, c C) []error {
	s.mu.Lock()
	snapshot := make([]*handlerRef[C], 0, len(s.handlers))
	for _, h := range s.handlers {
		if !h.removed {
			snapshot = append(snapshot, h)
		}
	}
	s.running++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running--
		if s.running == 0 && s.pending {
			s.compact()
		}
		s.mu.Unlock()
	}()

	var errs []error
	for _, h := range snapshot {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			return errs
		}
		if err := s.call(ctx, h, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Slot[C]) call(ctx context.Context, h *handlerRef[C], c C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HookError{Hook: s.name, Plugin: h.plugin, Err: fmt.Errorf("%v", r), Panicked: true}
		}
	}()
	if herr := h.fn(ctx, c); herr != nil {
		return &HookError{Hook: s.name, Plugin: h.plugin, Err: herr}
	}
	return nil
}
