package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

func resolvedEntry(id int64, input ir.Object) *entry.Entry {
	return &entry.Entry{ID: id, Input: input, Resolved: input, Options: entry.Options{Mode: ir.ModeAll}}
}

func kinds(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Kind
	}
	return out
}

func TestExtract_FieldOrderAndPositions(t *testing.T) {
	e := resolvedEntry(3, ir.Obj(
		ir.O("bodyAttrs", ir.Obj(ir.O("class", ir.String("dark")))),
		ir.O("meta", ir.Arr(
			ir.Obj(ir.O("charset", ir.String("utf-8"))),
			ir.Obj(ir.O("name", ir.String("description")), ir.O("content", ir.String("d"))),
		)),
		ir.O("title", ir.String("Home")),
		ir.O("link", ir.Obj(ir.O("rel", ir.String("canonical")), ir.O("href", ir.String("/")))),
	))

	cs, err := Extract(e, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "meta", "meta", "link", "bodyAttrs"}, kinds(cs))

	for i, c := range cs {
		assert.Equal(t, i, c.FieldIndex)
		assert.Equal(t, int64(3), c.EntryID)
		assert.Equal(t, int64(3)<<16|int64(i), c.Position())
	}
	assert.Equal(t, ir.String("Home"), cs[0].Props[KeyTextContent])
}

func TestExtract_Shorthands(t *testing.T) {
	tests := []struct {
		name  string
		input ir.Object
		kinds []string
		check func(t *testing.T, cs []Candidate)
	}{
		{
			name:  "numeric title",
			input: ir.Obj(ir.O("title", ir.Int(404))),
			kinds: []string{"title"},
			check: func(t *testing.T, cs []Candidate) {
				assert.Equal(t, ir.String("404"), cs[0].Props[KeyTextContent])
			},
		},
		{
			name:  "null title is skipped",
			input: ir.Obj(ir.O("title", ir.Null{})),
			kinds: []string{},
		},
		{
			name:  "null titleTemplate clears",
			input: ir.Obj(ir.O("titleTemplate", ir.Null{})),
			kinds: []string{"titleTemplate"},
			check: func(t *testing.T, cs []Candidate) {
				assert.Equal(t, ir.String(""), cs[0].Props[KeyTextContent])
			},
		},
		{
			name:  "bare script string is innerHTML",
			input: ir.Obj(ir.O("script", ir.Arr(ir.String("console.log(1)")))),
			kinds: []string{"script"},
			check: func(t *testing.T, cs []Candidate) {
				assert.Equal(t, ir.String("console.log(1)"), cs[0].Props[KeyInnerHTML])
			},
		},
		{
			name:  "null array elements skipped",
			input: ir.Obj(ir.O("meta", ir.Arr(ir.Null{}, ir.Obj(ir.O("charset", ir.String("utf-8")))))),
			kinds: []string{"meta"},
		},
		{
			name:  "unknown fields ignored",
			input: ir.Obj(ir.O("unknown", ir.String("x")), ir.O("base", ir.Obj(ir.O("href", ir.String("/"))))),
			kinds: []string{"base"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := Extract(resolvedEntry(1, tt.input), nil)
			require.NoError(t, err)
			got := kinds(cs)
			assert.Equal(t, tt.kinds, got)
			if tt.check != nil {
				tt.check(t, cs)
			}
		})
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input ir.Object
		field string
	}{
		{"meta string", ir.Obj(ir.O("meta", ir.Arr(ir.String("oops")))), "meta"},
		{"htmlAttrs scalar", ir.Obj(ir.O("htmlAttrs", ir.String("lang=en"))), "htmlAttrs"},
		{"title array", ir.Obj(ir.O("title", ir.Arr(ir.String("a")))), "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(resolvedEntry(9, tt.input), nil)
			require.Error(t, err)

			var ne *NormalizationError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, ErrCodeInvalidField, ne.Code)
			assert.Equal(t, int64(9), ne.EntryID)
			assert.Equal(t, tt.field, ne.Field)
		})
	}
}

func TestExtract_Unresolved(t *testing.T) {
	e := &entry.Entry{ID: 1, Input: ir.Obj(ir.O("title", ir.String("x")))}
	_, err := Extract(e, nil)
	assert.True(t, IsNormalizationError(err))
}
