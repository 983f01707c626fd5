package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "head.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot(route, passID, title string) Snapshot {
	tags := []ir.Tag{
		{Tag: ir.KindTitle, TextContent: title, EntryID: 1, Position: 1 << 16, DedupeKey: "title"},
		{
			Tag:         ir.KindScript,
			Props:       map[string]string{"type": "application/ld+json"},
			InnerHTML:   `{"a":"<b>"}`,
			TagPriority: ir.Priority{Kind: ir.PriorityBefore, Ref: "title"},
			EntryID:     1,
			Position:    1<<16 | 1,
		},
	}
	return Snapshot{
		Route:  route,
		PassID: passID,
		Render: ir.RenderServer,
		Hash:   digest.FromString(title),
		Tags:   tags,
		State:  hydrate.State{Hash: digest.FromString(title), Data: map[string]string{"lang": "en"}},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "head.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "head.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"snapshots", "pass_log", "counters"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestClose_Nil(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	snap := testSnapshot("/about", "pass-1", "About")
	inserted, err := s.Save(ctx, snap)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.Load(ctx, "/about")
	require.NoError(t, err)
	assert.Equal(t, "pass-1", got.PassID)
	assert.Equal(t, ir.RenderServer, got.Render)
	assert.Equal(t, snap.Hash, got.Hash)
	assert.Equal(t, snap.Tags, got.Tags)
	assert.Equal(t, snap.State, got.State)
	assert.Positive(t, got.Seq)
}

func TestSave_IdempotentPerHash(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := testSnapshot("/", "pass-1", "Home")
	inserted, err := s.Save(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := testSnapshot("/", "pass-2", "Home")
	inserted, err = s.Save(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted, "same hash is not a new history entry")

	got, err := s.Load(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "pass-2", got.PassID, "snapshot row still refreshed")

	changed := testSnapshot("/", "pass-3", "Home v2")
	inserted, err = s.Save(ctx, changed)
	require.NoError(t, err)
	assert.True(t, inserted)

	history, err := s.History(ctx, "/")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.Hash, history[0].Hash)
	assert.Equal(t, changed.Hash, history[1].Hash)
	assert.Less(t, history[0].Seq, history[1].Seq)
}

func TestSave_Validation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Save(ctx, Snapshot{Hash: digest.FromString("x")})
	assert.Error(t, err)

	_, err = s.Save(ctx, Snapshot{Route: "/", Hash: "not-a-digest"})
	assert.Error(t, err)
}

func TestLoad_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "/missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "/missing")
}

func TestRoutes_OrderedBySeq(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	routes, err := s.Routes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)
	assert.NotNil(t, routes)

	for _, r := range []string{"/b", "/a", "/c"} {
		_, err := s.Save(ctx, testSnapshot(r, "p", r))
		require.NoError(t, err)
	}
	// Re-saving /b moves it to the end.
	_, err = s.Save(ctx, testSnapshot("/b", "p2", "/b v2"))
	require.NoError(t, err)

	routes, err = s.Routes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/c", "/b"}, routes)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Save(ctx, testSnapshot("/x", "p", "X"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "/x"))
	require.NoError(t, s.Delete(ctx, "/never-saved"))

	_, err = s.Load(ctx, "/x")
	assert.True(t, IsNotFound(err))

	history, err := s.History(ctx, "/x")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "head.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.Save(ctx, testSnapshot("/", "p1", "Home"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Load(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PassID)

	// The logical clock continues from the stored counter.
	_, err = s2.Save(ctx, testSnapshot("/other", "p2", "Other"))
	require.NoError(t, err)
	other, err := s2.Load(ctx, "/other")
	require.NoError(t, err)
	assert.Greater(t, other.Seq, got.Seq)
}
