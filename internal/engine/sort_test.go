package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/headkit/internal/ir"
)

func keys(tags []ir.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.DedupeKey
	}
	return out
}

func keyed(kind, key string, pos int64, props map[string]string) ir.Tag {
	t := ir.Tag{Tag: kind, Props: props, Position: pos, Key: key}
	t.DedupeKey = dedupeKey(t)
	return t
}

func TestBaseWeight(t *testing.T) {
	tests := []struct {
		name string
		tag  ir.Tag
		want int
	}{
		{"csp", ir.Tag{Tag: ir.KindMeta, Props: map[string]string{"http-equiv": "Content-Security-Policy"}}, weightCSP},
		{"charset", ir.Tag{Tag: ir.KindMeta, Props: map[string]string{"charset": "utf-8"}}, weightCharset},
		{"viewport", ir.Tag{Tag: ir.KindMeta, Props: map[string]string{"name": "viewport"}}, weightViewport},
		{"base", ir.Tag{Tag: ir.KindBase}, weightBase},
		{"title", ir.Tag{Tag: ir.KindTitle}, weightTitle},
		{"preconnect", ir.Tag{Tag: ir.KindLink, Props: map[string]string{"rel": "preconnect"}}, weightPreconnect},
		{"async script", ir.Tag{Tag: ir.KindScript, Props: map[string]string{"src": "/a.js", "async": ""}}, weightAsyncScript},
		{"sync script", ir.Tag{Tag: ir.KindScript, Props: map[string]string{"src": "/a.js"}}, weightSyncScript},
		{"stylesheet", ir.Tag{Tag: ir.KindLink, Props: map[string]string{"rel": "stylesheet"}}, weightStylesheet},
		{"style", ir.Tag{Tag: ir.KindStyle}, weightStylesheet},
		{"modulepreload", ir.Tag{Tag: ir.KindLink, Props: map[string]string{"rel": "modulepreload"}}, weightPreload},
		{"defer script", ir.Tag{Tag: ir.KindScript, Props: map[string]string{"defer": ""}}, weightDeferScript},
		{"module script", ir.Tag{Tag: ir.KindScript, Props: map[string]string{"type": "module"}}, weightDeferScript},
		{"json script", ir.Tag{Tag: ir.KindScript, Props: map[string]string{"type": "application/ld+json"}}, weightDefault},
		{"dns-prefetch", ir.Tag{Tag: ir.KindLink, Props: map[string]string{"rel": "dns-prefetch"}}, weightPrefetch},
		{"ordinary meta", ir.Tag{Tag: ir.KindMeta, Props: map[string]string{"name": "description"}}, weightDefault},
		{"htmlAttrs", ir.Tag{Tag: ir.KindHTMLAttrs}, weightDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, baseWeight(tt.tag))
		})
	}
}

func TestSortTags_TiesByPosition(t *testing.T) {
	tags := []ir.Tag{
		keyed(ir.KindMeta, "", 3, map[string]string{"name": "c"}),
		keyed(ir.KindMeta, "", 1, map[string]string{"name": "a"}),
		keyed(ir.KindMeta, "", 2, map[string]string{"name": "b"}),
	}
	sortTags(tags)
	assert.Equal(t, []string{"meta:name:a", "meta:name:b", "meta:name:c"}, keys(tags))
}

func TestSortTags_Priorities(t *testing.T) {
	numeric := keyed(ir.KindMeta, "", 5, map[string]string{"name": "first"})
	numeric.TagPriority = ir.NumberPriority(-100)

	critical := keyed(ir.KindScript, "", 6, map[string]string{"src": "/critical.js"})
	critical.TagPriority = ir.Priority{Kind: ir.PriorityAlias, Alias: ir.AliasCritical}

	low := keyed(ir.KindTitle, "", 1, nil)
	low.TagPriority = ir.Priority{Kind: ir.PriorityAlias, Alias: ir.AliasLow}

	tags := []ir.Tag{
		keyed(ir.KindMeta, "", 2, map[string]string{"charset": "utf-8"}),
		low,
		critical,
		numeric,
	}
	sortTags(tags)
	// numeric -100, charset -20, critical script 50-80=-30, low title 10+20=30
	assert.Equal(t, []string{"meta:name:first", "script:src:/critical.js", "meta:charset", "title"}, keys(tags))
}

func TestSortTags_BeforeAfter(t *testing.T) {
	analytics := keyed(ir.KindScript, "analytics", 1, map[string]string{"src": "/analytics.js"})

	before := keyed(ir.KindScript, "consent", 2, map[string]string{"src": "/consent.js"})
	before.TagPriority = ir.Priority{Kind: ir.PriorityBefore, Ref: "analytics"}

	after := keyed(ir.KindScript, "tracker", 3, map[string]string{"src": "/tracker.js"})
	after.TagPriority = ir.Priority{Kind: ir.PriorityAfter, Ref: "script:key:analytics"}

	other := keyed(ir.KindScript, "other", 4, map[string]string{"src": "/other.js"})
	other.TagPriority = ir.NumberPriority(51)

	tags := []ir.Tag{other, analytics, after, before}
	sortTags(tags)
	assert.Equal(t, []string{
		"script:key:consent",
		"script:key:analytics",
		"script:key:tracker",
		"script:key:other",
	}, keys(tags))
}

func TestSortTags_ReferenceCycleAndMissingRef(t *testing.T) {
	a := keyed(ir.KindMeta, "a", 1, map[string]string{"name": "a"})
	a.TagPriority = ir.Priority{Kind: ir.PriorityBefore, Ref: "b"}
	b := keyed(ir.KindMeta, "b", 2, map[string]string{"name": "b"})
	b.TagPriority = ir.Priority{Kind: ir.PriorityBefore, Ref: "a"}
	missing := keyed(ir.KindMeta, "m", 3, map[string]string{"name": "m"})
	missing.TagPriority = ir.Priority{Kind: ir.PriorityAfter, Ref: "nowhere"}

	tags := []ir.Tag{a, b, missing}
	assert.NotPanics(t, func() { sortTags(tags) })
	assert.Len(t, tags, 3)

	again := []ir.Tag{a, b, missing}
	sortTags(again)
	assert.Equal(t, keys(tags), keys(again), "cycles still sort deterministically")
}
