package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
)

// Special keys lifted out of props.
const (
	KeyKey                   = "key"
	KeyTagPriority           = "tagPriority"
	KeyTagPosition           = "tagPosition"
	KeyTagDuplicateStrategy  = "tagDuplicateStrategy"
	KeyTextContent           = "textContent"
	KeyInnerHTML             = "innerHTML"
	KeyChildren              = "children"
	KeyProcessTemplateParams = "processTemplateParams"
)

// objectString is what an object-valued attribute renders as.
const objectString = "[object Object]"

// lowercaseAttrs are camelCase prop names whose HTML attribute is the plain
// lowercase form rather than the kebab-case one.
var lowercaseAttrs = map[string]string{
	"acceptCharset":  "accept-charset",
	"crossOrigin":    "crossorigin",
	"fetchPriority":  "fetchpriority",
	"hrefLang":       "hreflang",
	"imageSizes":     "imagesizes",
	"imageSrcset":    "imagesrcset",
	"itemId":         "itemid",
	"itemProp":       "itemprop",
	"itemRef":        "itemref",
	"itemScope":      "itemscope",
	"itemType":       "itemtype",
	"noModule":       "nomodule",
	"referrerPolicy": "referrerpolicy",
	"tabIndex":       "tabindex",
}

// metaPrefixes are the namespaces whose camelCase meta names take colon form.
var metaPrefixes = []string{"og", "fb", "twitter", "article", "book", "profile", "music", "video"}

// propertyPrefixes are the namespaces that belong in property rather than name.
var propertyPrefixes = []string{"og:", "fb:", "article:", "book:", "profile:", "music:", "video:"}

// NormaliseTag turns a candidate into a tag: special keys are lifted out,
// prop names are cased, values are coerced to attribute strings and keyed
// array-kind tags get a hydration attribute. The content hash is left for the
// pipeline to compute once tag:normalise handlers have run.
func NormaliseTag(c Candidate) (ir.Tag, error) {
	t := ir.Tag{
		Tag:         c.Kind,
		EntryID:     c.EntryID,
		Position:    c.Position(),
		TagPriority: c.Defaults.TagPriority,
		TagPosition: c.Defaults.TagPosition,
	}
	if t.TagPosition == "" {
		t.TagPosition = ir.PositionHead
	}

	fail := func(field, format string, args ...any) (ir.Tag, error) {
		return ir.Tag{}, invalidField(c.EntryID, c.Kind+"."+field, format, args...)
	}

	for _, k := range c.Props.SortedKeys() {
		v := c.Props[k]
		switch k {
		case KeyKey:
			s, ok := ir.Scalar(v)
			if !ok {
				return fail(k, "expected string, got %T", v)
			}
			t.Key = s

		case KeyTagPriority:
			p, err := ir.PriorityFromValue(v)
			if err != nil {
				return fail(k, "%v", err)
			}
			if !p.IsZero() {
				t.TagPriority = p
			}

		case KeyTagPosition:
			s, _ := ir.Scalar(v)
			pos, err := ir.ParseTagPosition(s)
			if err != nil {
				return fail(k, "%v", err)
			}
			t.TagPosition = pos

		case KeyTagDuplicateStrategy:
			s, _ := ir.Scalar(v)
			ds, err := ir.ParseDuplicateStrategy(s)
			if err != nil {
				return fail(k, "%v", err)
			}
			t.DuplicateStrategy = ds

		case KeyTextContent:
			s, err := contentString(v)
			if err != nil {
				return fail(k, "%v", err)
			}
			t.TextContent = s

		case KeyInnerHTML, KeyChildren:
			s, err := contentString(v)
			if err != nil {
				return fail(k, "%v", err)
			}
			if s != "" || t.InnerHTML == "" {
				t.InnerHTML = s
			}

		case KeyProcessTemplateParams:
			b, ok := v.(ir.Bool)
			if !ok {
				return fail(k, "expected boolean, got %T", v)
			}
			t.ProcessTemplateParams = bool(b)

		default:
			if c.Kind == ir.KindTemplateParams {
				flattenParam(&t, k, v)
				continue
			}
			name := AttrName(k)
			val, present := coerceProp(name, v)
			if present {
				t.SetProp(name, val)
			}
		}
	}

	if t.InnerHTML != "" {
		t.TextContent = ""
	}
	if t.Tag == ir.KindMeta {
		normaliseMetaName(&t)
	}
	if t.Key != "" && ir.IsArrayKind(t.Tag) {
		t.SetProp(hydrate.HydrationKey(t.Tag, t.Key), "")
	}
	return t, nil
}

// AttrName converts a camelCase prop name to its attribute form. Names that
// already contain a dash or colon are kept.
func AttrName(k string) string {
	if lc, ok := lowercaseAttrs[k]; ok {
		return lc
	}
	if strings.ContainsAny(k, "-:") {
		return k
	}
	return camelToKebab(k)
}

func camelToKebab(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// coerceProp converts a resolved value to its attribute string. The boolean
// result is false when the attribute must be omitted.
func coerceProp(name string, v ir.Value) (string, bool) {
	switch val := v.(type) {
	case ir.Null:
		return "", false
	case ir.Bool:
		return "", bool(val)
	case ir.Array:
		if name == "class" {
			return classString(val), true
		}
		parts := make([]string, 0, len(val))
		for _, elem := range val {
			parts = append(parts, joinString(elem))
		}
		return strings.Join(parts, ","), true
	case ir.Object:
		switch name {
		case "class":
			return classString(val), true
		case "style":
			return styleString(val), true
		}
		return objectString, true
	}
	s, _ := ir.Scalar(v)
	return s, true
}

// joinString renders an array element the way a comma join does: null is
// empty, objects fall back to their generic string.
func joinString(v ir.Value) string {
	switch val := v.(type) {
	case ir.Null:
		return ""
	case ir.Array:
		parts := make([]string, 0, len(val))
		for _, elem := range val {
			parts = append(parts, joinString(elem))
		}
		return strings.Join(parts, ",")
	case ir.Object:
		return objectString
	}
	s, _ := ir.Scalar(v)
	return s
}

// classString flattens a class array or a {name: enabled} object.
func classString(v ir.Value) string {
	var classes []string
	switch val := v.(type) {
	case ir.Array:
		for _, elem := range val {
			if s, ok := ir.Scalar(elem); ok && s != "" {
				classes = append(classes, strings.Fields(s)...)
			}
		}
	case ir.Object:
		for _, k := range val.SortedKeys() {
			if truthy(val[k]) {
				classes = append(classes, k)
			}
		}
	}
	return strings.Join(classes, " ")
}

// styleString flattens a style object to "k: v;" declarations.
func styleString(obj ir.Object) string {
	var decls []string
	for _, k := range obj.SortedKeys() {
		s, ok := ir.Scalar(obj[k])
		if !ok || s == "" {
			continue
		}
		decls = append(decls, AttrName(k)+": "+s+";")
	}
	return strings.Join(decls, " ")
}

func truthy(v ir.Value) bool {
	switch val := v.(type) {
	case ir.Bool:
		return bool(val)
	case ir.Null:
		return false
	case ir.String:
		return val != ""
	case ir.Int:
		return val != 0
	case ir.Float:
		return val != 0
	default:
		return true
	}
}

// contentString renders tag content. Objects and arrays (JSON-LD bodies) are
// serialised as JSON.
func contentString(v ir.Value) (string, error) {
	switch v.(type) {
	case ir.Null:
		return "", nil
	case ir.Object, ir.Array:
		b, err := ir.MarshalValue(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	s, ok := ir.Scalar(v)
	if !ok {
		return "", errUnexpected(v)
	}
	return s, nil
}

// flattenParam stores template params as dot-path props so nested params
// survive the string-only props map.
func flattenParam(t *ir.Tag, prefix string, v ir.Value) {
	switch val := v.(type) {
	case ir.Object:
		for _, k := range val.SortedKeys() {
			flattenParam(t, prefix+"."+k, val[k])
		}
	case ir.Null:
		t.SetProp(prefix, "")
	default:
		s, ok := ir.Scalar(v)
		if !ok {
			s = joinString(v)
		}
		t.SetProp(prefix, s)
	}
}

// normaliseMetaName rewrites camelCase namespaced names (ogImageWidth) to
// colon form (og:image:width) and moves Open Graph style names to property.
func normaliseMetaName(t *ir.Tag) {
	for _, attr := range []string{"name", "property"} {
		if v, ok := t.Props[attr]; ok {
			t.Props[attr] = metaColonForm(v)
		}
	}
	name, ok := t.Props["name"]
	if !ok {
		return
	}
	if _, has := t.Props["property"]; has {
		return
	}
	for _, p := range propertyPrefixes {
		if strings.HasPrefix(name, p) {
			delete(t.Props, "name")
			t.Props["property"] = name
			return
		}
	}
}

func metaColonForm(v string) string {
	if strings.ContainsAny(v, ":- ") {
		return v
	}
	for _, p := range metaPrefixes {
		if len(v) > len(p) && strings.HasPrefix(v, p) && unicode.IsUpper(rune(v[len(p)])) {
			return strings.ReplaceAll(camelToKebab(v), "-", ":")
		}
	}
	return v
}

func errUnexpected(v ir.Value) error {
	return fmt.Errorf("unexpected %T", v)
}
