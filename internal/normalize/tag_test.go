package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
)

func candidate(kind string, props ir.Object) Candidate {
	return Candidate{Kind: kind, Props: props, EntryID: 2, FieldIndex: 5}
}

func TestNormaliseTag_Coercion(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindScript, ir.Obj(
		ir.O("src", ir.String("/app.js")),
		ir.O("async", ir.Bool(true)),
		ir.O("defer", ir.Bool(false)),
		ir.O("nonce", ir.Null{}),
		ir.O("dataVersion", ir.Int(3)),
		ir.O("dataRatio", ir.Float(1.5)),
		ir.O("dataList", ir.Arr(ir.String("a"), ir.Int(1), ir.Null{})),
		ir.O("dataObj", ir.Obj(ir.O("x", ir.Int(1)))),
		ir.O("crossOrigin", ir.String("anonymous")),
	)))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"src":          "/app.js",
		"async":        "",
		"data-version": "3",
		"data-ratio":   "1.5",
		"data-list":    "a,1,",
		"data-obj":     "[object Object]",
		"crossorigin":  "anonymous",
	}, tag.Props)
	assert.Equal(t, int64(2)<<16|5, tag.Position)
	assert.Equal(t, int64(2), tag.EntryID)
	assert.Equal(t, ir.PositionHead, tag.TagPosition)
}

func TestNormaliseTag_SpecialKeys(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindStyle, ir.Obj(
		ir.O("key", ir.String("theme")),
		ir.O("tagPriority", ir.String("critical")),
		ir.O("tagPosition", ir.String("bodyClose")),
		ir.O("tagDuplicateStrategy", ir.String("merge")),
		ir.O("textContent", ir.String("ignored")),
		ir.O("children", ir.String("body{}")),
		ir.O("processTemplateParams", ir.Bool(true)),
	)))
	require.NoError(t, err)

	assert.Equal(t, "theme", tag.Key)
	assert.Equal(t, ir.Priority{Kind: ir.PriorityAlias, Alias: ir.AliasCritical}, tag.TagPriority)
	assert.Equal(t, ir.PositionBodyClose, tag.TagPosition)
	assert.Equal(t, ir.DuplicateMerge, tag.DuplicateStrategy)
	assert.Equal(t, "body{}", tag.InnerHTML)
	assert.Empty(t, tag.TextContent, "innerHTML wins over textContent")
	assert.True(t, tag.ProcessTemplateParams)

	for k := range tag.Props {
		assert.NotContains(t, []string{"key", "tag-priority", "tag-position", "children"}, k)
	}
	_, hasHydration := tag.Prop(hydrate.HydrationKey(ir.KindStyle, "theme"))
	assert.True(t, hasHydration, "keyed array-kind tags carry a hydration attribute")
}

func TestNormaliseTag_Defaults(t *testing.T) {
	c := candidate(ir.KindMeta, ir.Obj(ir.O("charset", ir.String("utf-8"))))
	c.Defaults = entry.Options{TagPriority: ir.NumberPriority(5), TagPosition: ir.PositionBodyOpen}

	tag, err := NormaliseTag(c)
	require.NoError(t, err)
	assert.Equal(t, ir.NumberPriority(5), tag.TagPriority)
	assert.Equal(t, ir.PositionBodyOpen, tag.TagPosition)

	c.Props = ir.Obj(ir.O("charset", ir.String("utf-8")), ir.O("tagPriority", ir.Int(-1)))
	tag, err = NormaliseTag(c)
	require.NoError(t, err)
	assert.Equal(t, ir.NumberPriority(-1), tag.TagPriority, "tag override beats entry default")
}

func TestNormaliseTag_SingletonKeyHasNoHydrationAttr(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindTitle, ir.Obj(
		ir.O("key", ir.String("t")),
		ir.O("textContent", ir.String("Home")),
	)))
	require.NoError(t, err)
	assert.Empty(t, tag.Props)
}

func TestNormaliseTag_MetaNames(t *testing.T) {
	tests := []struct {
		name  string
		props ir.Object
		want  map[string]string
	}{
		{
			"og camelCase moves to property",
			ir.Obj(ir.O("name", ir.String("ogImageWidth")), ir.O("content", ir.Int(1200))),
			map[string]string{"property": "og:image:width", "content": "1200"},
		},
		{
			"twitter stays in name",
			ir.Obj(ir.O("name", ir.String("twitterCard")), ir.O("content", ir.String("summary"))),
			map[string]string{"name": "twitter:card", "content": "summary"},
		},
		{
			"colon og name moves to property",
			ir.Obj(ir.O("name", ir.String("og:title")), ir.O("content", ir.String("T"))),
			map[string]string{"property": "og:title", "content": "T"},
		},
		{
			"plain name untouched",
			ir.Obj(ir.O("name", ir.String("description")), ir.O("content", ir.String("D"))),
			map[string]string{"name": "description", "content": "D"},
		},
		{
			"http-equiv casing",
			ir.Obj(ir.O("httpEquiv", ir.String("refresh")), ir.O("content", ir.String("5"))),
			map[string]string{"http-equiv": "refresh", "content": "5"},
		},
		{
			"lowercase word after prefix is not namespaced",
			ir.Obj(ir.O("name", ir.String("ogre")), ir.O("content", ir.String("x"))),
			map[string]string{"name": "ogre", "content": "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := NormaliseTag(candidate(ir.KindMeta, tt.props))
			require.NoError(t, err)
			assert.Equal(t, tt.want, tag.Props)
		})
	}
}

func TestNormaliseTag_ClassAndStyle(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindHTMLAttrs, ir.Obj(
		ir.O("lang", ir.String("en")),
		ir.O("class", ir.Arr(ir.String("dark"), ir.String("wide layout"), ir.Null{})),
		ir.O("style", ir.Obj(
			ir.O("backgroundColor", ir.String("red")),
			ir.O("margin", ir.Int(0)),
			ir.O("padding", ir.Null{}),
		)),
	)))
	require.NoError(t, err)
	assert.Equal(t, "en", tag.Props["lang"])
	assert.Equal(t, "dark wide layout", tag.Props["class"])
	assert.Equal(t, "background-color: red; margin: 0;", tag.Props["style"])

	tag, err = NormaliseTag(candidate(ir.KindBodyAttrs, ir.Obj(
		ir.O("class", ir.Obj(ir.O("b", ir.Bool(true)), ir.O("a", ir.Bool(true)), ir.O("off", ir.Bool(false)))),
	)))
	require.NoError(t, err)
	assert.Equal(t, "a b", tag.Props["class"])
}

func TestNormaliseTag_JSONContent(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindScript, ir.Obj(
		ir.O("type", ir.String("application/ld+json")),
		ir.O("innerHTML", ir.Obj(ir.O("@type", ir.String("Organization")), ir.O("name", ir.String("Acme")))),
	)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"@type":"Organization","name":"Acme"}`, tag.InnerHTML)
}

func TestNormaliseTag_TemplateParamsFlatten(t *testing.T) {
	tag, err := NormaliseTag(candidate(ir.KindTemplateParams, ir.Obj(
		ir.O("separator", ir.String("·")),
		ir.O("site", ir.Obj(ir.O("name", ir.String("Acme")), ir.O("year", ir.Int(2026)))),
	)))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"separator": "·",
		"site.name": "Acme",
		"site.year": "2026",
	}, tag.Props)
}

func TestNormaliseTag_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		props ir.Object
		field string
	}{
		{"bad priority", ir.Obj(ir.O("tagPriority", ir.String("urgent"))), "meta.tagPriority"},
		{"bad position", ir.Obj(ir.O("tagPosition", ir.String("footer"))), "meta.tagPosition"},
		{"bad strategy", ir.Obj(ir.O("tagDuplicateStrategy", ir.String("append"))), "meta.tagDuplicateStrategy"},
		{"object key", ir.Obj(ir.O("key", ir.Obj())), "meta.key"},
		{"string processTemplateParams", ir.Obj(ir.O("processTemplateParams", ir.String("yes"))), "meta.processTemplateParams"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormaliseTag(candidate(ir.KindMeta, tt.props))
			var ne *NormalizationError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.field, ne.Field)
			assert.Equal(t, int64(2), ne.EntryID)
		})
	}
}

func TestAttrName(t *testing.T) {
	tests := map[string]string{
		"httpEquiv":      "http-equiv",
		"ariaLabel":      "aria-label",
		"data-x":         "data-x",
		"xml:lang":       "xml:lang",
		"referrerPolicy": "referrerpolicy",
		"href":           "href",
	}
	for in, want := range tests {
		assert.Equal(t, want, AttrName(in), in)
	}
}
