package hooks

import (
	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

// Name identifies a hook point.
type Name string

// Fixed hook names, in pipeline order. The renderer hooks are owned by the
// DOM and SSR renderers but fire through the same registry.
const (
	EntriesResolve   Name = "entries:resolve"
	TagNormalise     Name = "tag:normalise"
	TagResolved      Name = "tag:resolved"
	TagsResolve      Name = "tags:resolve"
	TagsAfterResolve Name = "tags:afterResolve"
	DOMBeforeRender  Name = "dom:beforeRender"
	SSRRender        Name = "ssr:render"
)

// Names lists every fixed hook name.
var Names = []Name{
	EntriesResolve, TagNormalise, TagResolved, TagsResolve, TagsAfterResolve, DOMBeforeRender, SSRRender,
}

// Known reports whether n is one of the fixed hook names.
func (n Name) Known() bool {
	for _, k := range Names {
		if k == n {
			return true
		}
	}
	return false
}

// EntriesContext is passed to entries:resolve once every entry's deferred
// values have settled and before tags are extracted. Handlers may edit
// Entries[i].Resolved or drop entries from the slice.
type EntriesContext struct {
	Render  ir.RenderContext
	Entries []*entry.Entry
}

// TagContext is passed to tag:normalise and tag:resolved, once per tag.
type TagContext struct {
	Render ir.RenderContext
	Tag    *ir.Tag
	Entry  *entry.Entry
}

// TagsContext is passed to tags:resolve and tags:afterResolve. Handlers may
// rewrite Tags; they must not reorder it.
type TagsContext struct {
	Render ir.RenderContext
	Tags   []ir.Tag
}

// RenderPayload is passed to the renderer hooks.
type RenderPayload struct {
	Render ir.RenderContext
	Tags   []ir.Tag
	Hash   string

	// ShouldRender is the reconciler's decision; dom:beforeRender handlers may
	// veto a render by clearing it.
	ShouldRender bool

	// Output collects renderer output by section (head, bodyOpen, ...). The
	// SSR renderer fills it; ssr:render handlers may post-process it.
	Output map[string]string
}
