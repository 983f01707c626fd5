package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/testutil"
)

func TestLoad_BareDocument(t *testing.T) {
	doc, err := Load("testdata/about.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Entries, 1)

	e := doc.Entries[0]
	assert.Equal(t, ir.ModeAll, e.Options.Mode)
	assert.Equal(t, ir.String("About"), e.Input["title"])

	meta, ok := e.Input["meta"].(ir.Array)
	require.True(t, ok)
	require.Len(t, meta, 2)
	assert.Equal(t, ir.String("og:image"), meta[1].(ir.Object)["property"])
}

func TestLoad_FormatsAgree(t *testing.T) {
	yamlDoc, err := Load("testdata/about.yaml")
	require.NoError(t, err)

	for _, path := range []string{"testdata/about.json", "testdata/about.cue"} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			doc, err := Load(path)
			require.NoError(t, err)
			require.Len(t, doc.Entries, 1)
			assert.Equal(t, yamlDoc.Entries[0].Input, doc.Entries[0].Input)
			assert.Equal(t, path, doc.Path)
		})
	}
}

func TestLoad_WrappedDocument(t *testing.T) {
	doc, err := Load("testdata/site.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Entries, 3, "params entry plus two entries")

	params := doc.Entries[0].Input["templateParams"].(ir.Object)
	assert.Equal(t, ir.String("Acme"), params["siteName"])

	tmpl := doc.Entries[1]
	assert.Equal(t, ir.Priority{Kind: ir.PriorityAlias, Alias: ir.AliasHigh}, tmpl.Options.TagPriority)
	assert.Equal(t, ir.ModeAll, tmpl.Options.Mode)
	assert.Equal(t, ir.PositionHead, tmpl.Options.TagPosition)

	home := doc.Entries[2]
	assert.Equal(t, ir.ModeClient, home.Options.Mode)
	assert.Equal(t, ir.PositionBodyClose, home.Options.TagPosition)
	script := home.Input["script"].(ir.Array)[0].(ir.Object)
	assert.Equal(t, ir.Bool(true), script["async"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		path string
		code string
	}{
		{"testdata/invalid/meta_number.yaml", ErrCodeSchema},
		{"testdata/invalid/bad_mode.yaml", ErrCodeSchema},
		{"testdata/invalid/broken.yaml", ErrCodeParseFailed},
		{"testdata/invalid/incomplete.cue", ErrCodeParseFailed},
		{"testdata/missing.yaml", ErrCodeNotFound},
		{"testdata/about.txt", ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, IsLoadError(err, tt.code), "got %v", err)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestParse_EmptyYAMLIsEmptyInput(t *testing.T) {
	doc, err := Parse([]byte("# nothing here\n"), FormatYAML, "empty.yaml")
	require.NoError(t, err)
	require.Len(t, doc.Entries, 1)
	assert.Empty(t, doc.Entries[0].Input)
}

func TestParse_RejectsUnknownWrapperKeys(t *testing.T) {
	_, err := Parse([]byte(`{"entries": [], "extra": 1}`), FormatJSON, "doc.json")
	assert.True(t, IsLoadError(err, ErrCodeSchema))
}

func TestLoadAll_DirectoryOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("title: B\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"title": "A"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	docs, err := LoadAll([]string{dir, "testdata/about.yaml"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, ir.String("A"), docs[0].Entries[0].Input["title"])
	assert.Equal(t, ir.String("B"), docs[1].Entries[0].Input["title"])
	assert.Equal(t, ir.String("About"), docs[2].Entries[0].Input["title"])
}

func TestFind_NoDocuments(t *testing.T) {
	_, err := Find(t.TempDir())
	assert.True(t, IsLoadError(err, ErrCodeNoFiles))
}

func TestDocument_Push(t *testing.T) {
	doc, err := Load("testdata/site.yaml")
	require.NoError(t, err)

	store := entry.NewStore(testutil.DiscardLogger())
	handles := doc.Push(store)
	require.Len(t, handles, 3)
	assert.Equal(t, 3, store.Len())

	// Pushing clones inputs: patching the store leaves the document intact.
	require.NoError(t, handles[2].Patch(ir.Object{"title": ir.String("Changed")}))
	assert.Equal(t, ir.String("Home"), doc.Entries[2].Input["title"])
}

func TestIsLoadError(t *testing.T) {
	err := &LoadError{Code: ErrCodeSchema, Message: "m"}
	assert.True(t, IsLoadError(err))
	assert.True(t, IsLoadError(err, ErrCodeNoFiles, ErrCodeSchema))
	assert.False(t, IsLoadError(err, ErrCodeNoFiles))
	assert.False(t, IsLoadError(assert.AnError))
	assert.Equal(t, "E120: m", err.Error())
}
