package engine

import (
	"slices"
	"strings"

	"github.com/roach88/headkit/internal/ir"
)

// Base weights by tag class. Lower sorts first.
const (
	weightCSP         = -30
	weightCharset     = -20
	weightViewport    = -15
	weightBase        = -10
	weightTitle       = 10
	weightPreconnect  = 20
	weightAsyncScript = 30
	weightSyncScript  = 50
	weightStylesheet  = 60
	weightPreload     = 70
	weightDeferScript = 80
	weightPrefetch    = 90
	weightDefault     = 100
)

var aliasOffsets = map[string]int{
	ir.AliasCritical: -80,
	ir.AliasHigh:     -10,
	ir.AliasLow:      20,
}

// baseWeight ranks a tag by what it is: critical tags first, then
// render-blocking resources, then everything else.
func baseWeight(t ir.Tag) int {
	switch t.Tag {
	case ir.KindBase:
		return weightBase
	case ir.KindTitle:
		return weightTitle
	case ir.KindStyle:
		return weightStylesheet
	case ir.KindMeta:
		if _, ok := t.Props["charset"]; ok {
			return weightCharset
		}
		if strings.EqualFold(t.Props["http-equiv"], "content-security-policy") {
			return weightCSP
		}
		if t.Props["name"] == "viewport" {
			return weightViewport
		}
	case ir.KindLink:
		switch strings.ToLower(t.Props["rel"]) {
		case "preconnect":
			return weightPreconnect
		case "stylesheet":
			return weightStylesheet
		case "preload", "modulepreload":
			return weightPreload
		case "prefetch", "dns-prefetch", "prerender":
			return weightPrefetch
		}
	case ir.KindScript:
		if isJSONScript(t) {
			return weightDefault
		}
		if _, ok := t.Props["async"]; ok {
			return weightAsyncScript
		}
		if _, ok := t.Props["defer"]; ok || t.Props["type"] == "module" {
			return weightDeferScript
		}
		return weightSyncScript
	}
	return weightDefault
}

// sortTags orders tags by weight, ties by position. before:/after: priorities
// take the referenced tag's weight minus or plus one.
func sortTags(tags []ir.Tag) {
	weights := make([]int, len(tags))
	resolving := make([]bool, len(tags))
	done := make([]bool, len(tags))

	byRef := make(map[string]int, len(tags))
	for i, t := range tags {
		if t.DedupeKey != "" {
			if _, dup := byRef[t.DedupeKey]; !dup {
				byRef[t.DedupeKey] = i
			}
		}
		if t.Key != "" {
			if _, dup := byRef[t.Key]; !dup {
				byRef[t.Key] = i
			}
		}
	}

	var weight func(i int) int
	weight = func(i int) int {
		if done[i] {
			return weights[i]
		}
		t := tags[i]
		w := baseWeight(t)
		p := t.TagPriority
		switch p.Kind {
		case ir.PriorityNumber:
			w = p.Number
		case ir.PriorityAlias:
			w += aliasOffsets[p.Alias]
		case ir.PriorityBefore, ir.PriorityAfter:
			// A reference cycle falls back to the base weight.
			if j, ok := byRef[p.Ref]; ok && j != i && !resolving[i] {
				resolving[i] = true
				w = weight(j)
				if p.Kind == ir.PriorityBefore {
					w--
				} else {
					w++
				}
				resolving[i] = false
			}
		}
		weights[i], done[i] = w, true
		return w
	}

	type ranked struct {
		tag    ir.Tag
		weight int
	}
	rs := make([]ranked, len(tags))
	for i := range tags {
		rs[i] = ranked{tag: tags[i], weight: weight(i)}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int {
		if a.weight != b.weight {
			return a.weight - b.weight
		}
		switch {
		case a.tag.Position < b.tag.Position:
			return -1
		case a.tag.Position > b.tag.Position:
			return 1
		}
		return 0
	})
	for i := range rs {
		tags[i] = rs[i].tag
	}
}
