package engine

import (
	"strconv"
	"strings"

	"github.com/roach88/headkit/internal/ir"
)

// dedupeKey returns the identity under which two tags are the same logical
// tag.
func dedupeKey(t ir.Tag) string {
	if ir.IsSingleton(t.Tag) {
		return t.Tag
	}
	if t.Key != "" {
		return t.Tag + ":key:" + t.Key
	}

	switch t.Tag {
	case ir.KindMeta:
		if _, ok := t.Props["charset"]; ok {
			return "meta:charset"
		}
		for _, attr := range []string{"name", "property", "http-equiv", "itemprop"} {
			if v, ok := t.Props[attr]; ok && v != "" {
				if attr == "http-equiv" {
					v = strings.ToLower(v)
				}
				return "meta:" + attr + ":" + v
			}
		}
	case ir.KindLink:
		rel := strings.ToLower(t.Props["rel"])
		if rel == "canonical" {
			return "link:canonical"
		}
		if href, ok := t.Props["href"]; ok && rel != "" {
			return "link:rel:" + rel + ":href:" + href
		}
	case ir.KindScript:
		if src := t.Props["src"]; src != "" {
			return "script:src:" + src
		}
		if id := t.Props["id"]; id != "" {
			return "script:id:" + id
		}
	case ir.KindStyle, ir.KindNoscript:
		if id := t.Props["id"]; id != "" {
			return t.Tag + ":id:" + id
		}
	}
	return t.Tag + ":hash:" + t.ContentHash
}

type dedupeGroup struct {
	tag ir.Tag

	// extras are same-identity tags from the entry that produced tag, such as
	// several og:image metas in one entry. They live and die with tag.
	extras []ir.Tag
}

// dedupe collapses tags sharing a dedupe identity. Tags must be in position
// order. A later tag replaces the group (or merges into it under the merge
// strategy); the survivor takes the earliest position of its group. Array-kind
// duplicates from a single entry are all kept.
func dedupe(tags []ir.Tag) []ir.Tag {
	groups := make(map[string]*dedupeGroup, len(tags))
	var order []string

	for _, t := range tags {
		key := dedupeKey(t)
		t.DedupeKey = key

		g, ok := groups[key]
		if !ok {
			groups[key] = &dedupeGroup{tag: t}
			order = append(order, key)
			continue
		}

		first := g.tag.Position
		switch {
		case t.DuplicateStrategy == ir.DuplicateMerge:
			g.tag = mergeTags(g.tag, t)
		case !ir.IsSingleton(t.Tag) && t.EntryID == g.tag.EntryID:
			t.DedupeKey = key + ":" + strconv.Itoa(len(g.extras)+1)
			g.extras = append(g.extras, t)
			continue
		default:
			g.tag = t
			g.extras = nil
		}
		if first < g.tag.Position {
			g.tag.Position = first
		}
	}

	out := make([]ir.Tag, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, g.tag)
		out = append(out, g.extras...)
	}
	return out
}

// mergeTags merges next into prev: class tokens are unioned, style
// declarations concatenated, other props and content overlaid by next.
func mergeTags(prev, next ir.Tag) ir.Tag {
	out := next.Clone()
	out.Props = make(map[string]string, len(prev.Props)+len(next.Props))
	for k, v := range prev.Props {
		out.Props[k] = v
	}
	for k, v := range next.Props {
		switch k {
		case "class":
			out.Props[k] = mergeClass(prev.Props[k], v)
		case "style":
			out.Props[k] = mergeStyle(prev.Props[k], v)
		default:
			out.Props[k] = v
		}
	}
	if next.Content() == "" {
		out.TextContent = prev.TextContent
		out.InnerHTML = prev.InnerHTML
	}
	if out.TagPriority.IsZero() {
		out.TagPriority = prev.TagPriority
	}
	return out
}

func mergeClass(a, b string) string {
	seen := make(map[string]bool)
	var out []string
	for _, cls := range append(strings.Fields(a), strings.Fields(b)...) {
		if !seen[cls] {
			seen[cls] = true
			out = append(out, cls)
		}
	}
	return strings.Join(out, " ")
}

func mergeStyle(a, b string) string {
	a = strings.TrimRight(strings.TrimSpace(a), ";")
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a + ";"
	}
	return a + "; " + b
}
