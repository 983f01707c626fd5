package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/ir"
)

func TestRegistry_NamedKnownBindsTypedSlot(t *testing.T) {
	r := NewRegistry()

	var got *TagsContext
	r.Named(TagsResolve, func(_ context.Context, c any) error {
		got = c.(*TagsContext)
		return nil
	})
	assert.Equal(t, 1, r.Len(TagsResolve))

	tc := &TagsContext{Render: ir.RenderServer}
	errs := r.TagsResolve.Emit(context.Background(), tc)
	assert.Empty(t, errs)
	assert.Same(t, tc, got)
}

func TestRegistry_UnknownNameIsNoopTarget(t *testing.T) {
	r := NewRegistry()
	name := Name("schema:graph")
	assert.False(t, name.Known())

	fired := 0
	r.Named(name, func(context.Context, any) error {
		fired++
		return nil
	})
	assert.Equal(t, 1, r.Len(name))

	// Pipeline emits never touch unknown names.
	r.TagsResolve.Emit(context.Background(), &TagsContext{})
	assert.Zero(t, fired)

	assert.Empty(t, r.EmitNamed(context.Background(), name, "payload"))
	assert.Equal(t, 1, fired)

	assert.Nil(t, r.EmitNamed(context.Background(), Name("never:registered"), nil))
	assert.Zero(t, r.Len(Name("never:registered")))
}

func TestRegistry_EmitNamedWrongPayload(t *testing.T) {
	r := NewRegistry()
	r.TagResolved.Hook(func(context.Context, *TagContext) error { return nil })

	errs := r.EmitNamed(context.Background(), TagResolved, "not a tag context")
	require.Len(t, errs, 1)

	var he *HookError
	require.ErrorAs(t, errs[0], &he)
	assert.Equal(t, TagResolved, he.Hook)
	assert.Contains(t, he.Error(), "want *hooks.TagContext")
}

func TestRegistry_UsePlugin(t *testing.T) {
	r := NewRegistry()
	var order []string

	dispose := r.Use(Plugin{
		Name: "audit",
		Hooks: Set{
			TagsResolve: func(context.Context, *TagsContext) error {
				order = append(order, "tags:resolve")
				return nil
			},
			SSRRender: func(_ context.Context, p *RenderPayload) error {
				p.Output["head"] += "<!-- audit -->"
				return nil
			},
			Named: map[Name]Handler[any]{
				"b:custom": func(context.Context, any) error {
					order = append(order, "b:custom")
					return nil
				},
				TagsAfterResolve: func(context.Context, any) error {
					order = append(order, "tags:afterResolve")
					return nil
				},
			},
		},
	})

	assert.Equal(t, 1, r.Len(TagsResolve))
	assert.Equal(t, 1, r.Len(TagsAfterResolve))
	assert.Equal(t, 1, r.Len(SSRRender))
	assert.Equal(t, 1, r.Len("b:custom"))
	assert.Zero(t, r.Len(TagNormalise))

	ctx := context.Background()
	r.TagsResolve.Emit(ctx, &TagsContext{})
	r.TagsAfterResolve.Emit(ctx, &TagsContext{})
	r.EmitNamed(ctx, "b:custom", nil)
	assert.Equal(t, []string{"tags:resolve", "tags:afterResolve", "b:custom"}, order)

	payload := &RenderPayload{Output: map[string]string{"head": "<title>x</title>"}}
	r.SSRRender.Emit(ctx, payload)
	assert.Equal(t, "<title>x</title><!-- audit -->", payload.Output["head"])

	dispose()
	for _, n := range Names {
		assert.Zero(t, r.Len(n), n)
	}
	assert.Zero(t, r.Len("b:custom"))
}

func TestRegistry_PluginErrorsCarryPluginName(t *testing.T) {
	r := NewRegistry()
	r.Use(Plugin{
		Name: "flaky",
		Hooks: Set{
			EntriesResolve: func(context.Context, *EntriesContext) error {
				return assert.AnError
			},
		},
	})

	errs := r.EntriesResolve.Emit(context.Background(), &EntriesContext{})
	require.Len(t, errs, 1)
	var he *HookError
	require.ErrorAs(t, errs[0], &he)
	assert.Equal(t, "flaky", he.Plugin)
	assert.Equal(t, EntriesResolve, he.Hook)
}
