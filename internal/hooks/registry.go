package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Registry holds one typed slot per fixed hook name plus untyped slots for
// names it does not know about.
type Registry struct {
	EntriesResolve   *Slot[*EntriesContext]
	TagNormalise     *Slot[*TagContext]
	TagResolved      *Slot[*TagContext]
	TagsResolve      *Slot[*TagsContext]
	TagsAfterResolve *Slot[*TagsContext]
	DOMBeforeRender  *Slot[*RenderPayload]
	SSRRender        *Slot[*RenderPayload]

	mu    sync.Mutex
	named map[Name]*Slot[any]
}

// NewRegistry creates a registry with empty slots.
func NewRegistry() *Registry {
	return &Registry{
		EntriesResolve:   NewSlot[*EntriesContext](EntriesResolve),
		TagNormalise:     NewSlot[*TagContext](TagNormalise),
		TagResolved:      NewSlot[*TagContext](TagResolved),
		TagsResolve:      NewSlot[*TagsContext](TagsResolve),
		TagsAfterResolve: NewSlot[*TagsContext](TagsAfterResolve),
		DOMBeforeRender:  NewSlot[*RenderPayload](DOMBeforeRender),
		SSRRender:        NewSlot[*RenderPayload](SSRRender),
		named:            make(map[Name]*Slot[any]),
	}
}

// Named registers fn against name. For a fixed name the handler receives that
// hook's context pointer as any; any other name is stored and only fires
// through EmitNamed.
func (r *Registry) Named(name Name, fn Handler[any]) func() {
	return r.named0("", name, fn)
}

func (r *Registry) named0(plugin string, name Name, fn Handler[any]) func() {
	switch name {
	case EntriesResolve:
		return r.EntriesResolve.HookAs(plugin, adapt[*EntriesContext](fn))
	case TagNormalise:
		return r.TagNormalise.HookAs(plugin, adapt[*TagContext](fn))
	case TagResolved:
		return r.TagResolved.HookAs(plugin, adapt[*TagContext](fn))
	case TagsResolve:
		return r.TagsResolve.HookAs(plugin, adapt[*TagsContext](fn))
	case TagsAfterResolve:
		return r.TagsAfterResolve.HookAs(plugin, adapt[*TagsContext](fn))
	case DOMBeforeRender:
		return r.DOMBeforeRender.HookAs(plugin, adapt[*RenderPayload](fn))
	case SSRRender:
		return r.SSRRender.HookAs(plugin, adapt[*RenderPayload](fn))
	}

	r.mu.Lock()
	slot, ok := r.named[name]
	if !ok {
		slot = NewSlot[any](name)
		r.named[name] = slot
	}
	r.mu.Unlock()
	return slot.HookAs(plugin, fn)
}

func adapt[C any](fn Handler[any]) Handler[C] {
	return func(ctx context.Context, c C) error {
		return fn(ctx, c)
	}
}

// EmitNamed fires name with payload. For a fixed name the payload must be that
// hook's context pointer. Emitting a name nobody registered is a no-op.
func (r *Registry) EmitNamed(ctx context.Context, name Name, payload any) []error {
	switch name {
	case EntriesResolve:
		return emitAs(ctx, r.EntriesResolve, payload)
	case TagNormalise:
		return emitAs(ctx, r.TagNormalise, payload)
	case TagResolved:
		return emitAs(ctx, r.TagResolved, payload)
	case TagsResolve:
		return emitAs(ctx, r.TagsResolve, payload)
	case TagsAfterResolve:
		return emitAs(ctx, r.TagsAfterResolve, payload)
	case DOMBeforeRender:
		return emitAs(ctx, r.DOMBeforeRender, payload)
	case SSRRender:
		return emitAs(ctx, r.SSRRender, payload)
	}

	r.mu.Lock()
	slot, ok := r.named[name]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return slot.Emit(ctx, payload)
}

func emitAs[C any](ctx context.Context, slot *Slot[C], payload any) []error {
	c, ok := payload.(C)
	if !ok {
		var want C
		return []error{&HookError{
			Hook: slot.Name(),
			Err:  fmt.Errorf("payload is %T, want %T", payload, want),
		}}
	}
	return slot.Emit(ctx, c)
}

// Len returns the number of handlers registered under name.
func (r *Registry) Len(name Name) int {
	switch name {
	case EntriesResolve:
		return r.EntriesResolve.Len()
	case TagNormalise:
		return r.TagNormalise.Len()
	case TagResolved:
		return r.TagResolved.Len()
	case TagsResolve:
		return r.TagsResolve.Len()
	case TagsAfterResolve:
		return r.TagsAfterResolve.Len()
	case DOMBeforeRender:
		return r.DOMBeforeRender.Len()
	case SSRRender:
		return r.SSRRender.Len()
	}
	r.mu.Lock()
	slot, ok := r.named[name]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return slot.Len()
}

// Set is the hook surface of a plugin. Nil handlers are skipped.
type Set struct {
	EntriesResolve   Handler[*EntriesContext]
	TagNormalise     Handler[*TagContext]
	TagResolved      Handler[*TagContext]
	TagsResolve      Handler[*TagsContext]
	TagsAfterResolve Handler[*TagsContext]
	DOMBeforeRender  Handler[*RenderPayload]
	SSRRender        Handler[*RenderPayload]

	// Named binds handlers by name, including names this version does not know.
	Named map[Name]Handler[any]
}

// Plugin bundles hook handlers under a name.
type Plugin struct {
	Name  string
	Hooks Set
}

// Use binds every handler of p and returns a disposer that unbinds them all.
// Named handlers are bound in name order so registration order is stable.
func (r *Registry) Use(p Plugin) func() {
	var disposers []func()
	bind := func(d func()) { disposers = append(disposers, d) }

	s := p.Hooks
	if s.EntriesResolve != nil {
		bind(r.EntriesResolve.HookAs(p.Name, s.EntriesResolve))
	}
	if s.TagNormalise != nil {
		bind(r.TagNormalise.HookAs(p.Name, s.TagNormalise))
	}
	if s.TagResolved != nil {
		bind(r.TagResolved.HookAs(p.Name, s.TagResolved))
	}
	if s.TagsResolve != nil {
		bind(r.TagsResolve.HookAs(p.Name, s.TagsResolve))
	}
	if s.TagsAfterResolve != nil {
		bind(r.TagsAfterResolve.HookAs(p.Name, s.TagsAfterResolve))
	}
	if s.DOMBeforeRender != nil {
		bind(r.DOMBeforeRender.HookAs(p.Name, s.DOMBeforeRender))
	}
	if s.SSRRender != nil {
		bind(r.SSRRender.HookAs(p.Name, s.SSRRender))
	}
	for _, name := range sortedNames(s.Named) {
		bind(r.named0(p.Name, name, s.Named[name]))
	}

	return func() {
		for _, d := range disposers {
			d()
		}
	}
}

func sortedNames(m map[Name]Handler[any]) []Name {
	names := make([]Name, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
