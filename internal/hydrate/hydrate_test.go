package hydrate

import (
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/ir"
)

func sampleTags() []ir.Tag {
	return []ir.Tag{
		{Tag: ir.KindMeta, Props: map[string]string{"charset": "utf-8"}, DedupeKey: "meta:charset"},
		{Tag: ir.KindTitle, TextContent: "Home", DedupeKey: "title"},
		{Tag: ir.KindMeta, Props: map[string]string{"name": "description", "content": "A page"}, DedupeKey: "meta:name:description"},
	}
}

func TestHydrationKey(t *testing.T) {
	k := HydrationKey(ir.KindScript, "analytics")
	assert.True(t, strings.HasPrefix(k, AttrPrefix))
	assert.Len(t, k, len(AttrPrefix)+7)
	assert.Equal(t, k, HydrationKey(ir.KindScript, "analytics"), "stable")
	assert.NotEqual(t, k, HydrationKey(ir.KindLink, "analytics"), "kind separated")
	assert.NotEqual(t, k, HydrationKey(ir.KindScript, "other"))
}

func TestPassHash_Stable(t *testing.T) {
	a, err := PassHash(sampleTags())
	require.NoError(t, err)
	b, err := PassHash(sampleTags())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, digest.SHA256, a.Algorithm())
	assert.NoError(t, a.Validate())
}

func TestPassHash_IgnoresDerivedFields(t *testing.T) {
	tags := sampleTags()
	base, err := PassHash(tags)
	require.NoError(t, err)

	for i := range tags {
		tags[i].EntryID = 99
		tags[i].Position = int64(1000 + i)
	}
	moved, err := PassHash(tags)
	require.NoError(t, err)
	assert.Equal(t, base, moved)
}

func TestPassHash_ContentChangesHash(t *testing.T) {
	base, err := PassHash(sampleTags())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]ir.Tag) []ir.Tag
	}{
		{"title text", func(ts []ir.Tag) []ir.Tag { ts[1].TextContent = "About"; return ts }},
		{"prop value", func(ts []ir.Tag) []ir.Tag { ts[2].Props["content"] = "Other"; return ts }},
		{"order", func(ts []ir.Tag) []ir.Tag { ts[0], ts[1] = ts[1], ts[0]; return ts }},
		{"dropped tag", func(ts []ir.Tag) []ir.Tag { return ts[:2] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := PassHash(tt.mutate(sampleTags()))
			require.NoError(t, err)
			assert.NotEqual(t, base, h)
		})
	}
}

func TestPassHash_ExcludesStateTag(t *testing.T) {
	tags := sampleTags()
	base, err := PassHash(tags)
	require.NoError(t, err)

	st, err := StateTag(State{Hash: base})
	require.NoError(t, err)
	withState, err := PassHash(append(tags, st))
	require.NoError(t, err)

	assert.Equal(t, base, withState)
}

func TestPassHash_Empty(t *testing.T) {
	h, err := PassHash(nil)
	require.NoError(t, err)
	assert.NoError(t, h.Validate())
}

func TestReconciler_Observe(t *testing.T) {
	h1, err := PassHash(sampleTags())
	require.NoError(t, err)
	tags := sampleTags()
	tags[1].TextContent = "About"
	h2, err := PassHash(tags)
	require.NoError(t, err)

	r := NewReconciler("")
	assert.True(t, r.Observe(h1), "first pass renders")
	assert.False(t, r.Observe(h1), "unchanged pass skips")
	assert.True(t, r.Observe(h2))
	assert.Equal(t, h2, r.Last())

	seeded := NewReconciler(h1)
	assert.False(t, seeded.Observe(h1), "server hash adopted by the client")

	seeded.Seed(h2)
	assert.False(t, seeded.Observe(h2))
}

func TestState_RoundTrip(t *testing.T) {
	h, err := PassHash(sampleTags())
	require.NoError(t, err)

	st, err := StateTag(State{Hash: h, Data: map[string]string{"locale": "</script><b>"}})
	require.NoError(t, err)
	assert.True(t, IsStateTag(st))
	assert.Equal(t, "application/json", st.Props["type"])
	assert.NotContains(t, st.InnerHTML, "</script>", "payload is HTML-escaped")
	assert.Contains(t, st.InnerHTML, `\u003c/script\u003e`)

	got, found, err := FindState(append(sampleTags(), st))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, h, got.Hash)
	assert.Equal(t, "</script><b>", got.Data["locale"])
}

func TestFindState_Missing(t *testing.T) {
	_, found, err := FindState(sampleTags())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestParseState_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"bad digest", `{"hash":"sha256:nothex"}`},
		{"unknown algorithm", `{"hash":"md5:d41d8cd98f00b204e9800998ecf8427e"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseState([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	s, err := ParseState([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, s.Hash)
}
