package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesDocumentPaths(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/dedupe_and_order.yaml")
	require.NoError(t, err)

	assert.Equal(t, "dedupe_and_order", s.Name)
	require.Len(t, s.Documents, 1)
	assert.Equal(t, filepath.Join("testdata", "documents", "base.yaml"), s.Documents[0])
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "temp", s.Steps[0].Dispose)
}

func TestLoadScenario_MissingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
documents: [nope.yaml]
assertions: [{type: no_diagnostics}]
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents[0]")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: s\ndescription: d\nentry: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nentries: [{input: {}}]\nassertions: [{type: stable_hash}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: s\nentries: [{input: {}}]\nassertions: [{type: stable_hash}]\n",
			want: "description is required",
		},
		{
			name: "bad render",
			yaml: "name: s\ndescription: d\nrender: edge\nentries: [{input: {}}]\nassertions: [{type: stable_hash}]\n",
			want: "render",
		},
		{
			name: "no entries",
			yaml: "name: s\ndescription: d\nassertions: [{type: stable_hash}]\n",
			want: "documents or entries are required",
		},
		{
			name: "no assertions",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\n",
			want: "assertions list is required",
		},
		{
			name: "entry without input",
			yaml: "name: s\ndescription: d\nentries: [{name: a}]\nassertions: [{type: stable_hash}]\n",
			want: "entries[0]: input is required",
		},
		{
			name: "duplicate entry name",
			yaml: "name: s\ndescription: d\nentries: [{name: a, input: {}}, {name: a, input: {}}]\nassertions: [{type: stable_hash}]\n",
			want: "duplicate name",
		},
		{
			name: "step on unknown entry",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\nsteps: [{dispose: ghost}]\nassertions: [{type: stable_hash}]\n",
			want: `unknown entry "ghost"`,
		},
		{
			name: "patch without input",
			yaml: "name: s\ndescription: d\nentries: [{name: a, input: {}}]\nsteps: [{patch: a}]\nassertions: [{type: stable_hash}]\n",
			want: "input is required for patch",
		},
		{
			name: "patch and dispose",
			yaml: "name: s\ndescription: d\nentries: [{name: a, input: {}}]\nsteps: [{patch: a, dispose: a, input: {}}]\nassertions: [{type: stable_hash}]\n",
			want: "exclusive",
		},
		{
			name: "empty step",
			yaml: "name: s\ndescription: d\nentries: [{name: a, input: {}}]\nsteps: [{}]\nassertions: [{type: stable_hash}]\n",
			want: "patch or dispose is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "tag_present without kind",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\nassertions: [{type: tag_present}]\n",
			want: "kind is required",
		},
		{
			name: "tag_order with one key",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\nassertions: [{type: tag_order, keys: [title]}]\n",
			want: "at least two keys",
		},
		{
			name: "negative count",
			yaml: "name: s\ndescription: d\nentries: [{input: {}}]\nassertions: [{type: tag_count, kind: meta, count: -1}]\n",
			want: "non-negative",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
