package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
)

// Snapshot is the persisted result of one resolution pass for a route.
type Snapshot struct {
	Route  string
	PassID string
	Render ir.RenderContext
	Hash   digest.Digest
	Tags   []ir.Tag
	State  hydrate.State

	// Seq is assigned by Save.
	Seq int64
}

// LogRecord is one row of a route's pass history.
type LogRecord struct {
	Route  string
	PassID string
	Hash   digest.Digest
	Seq    int64
}

// NotFoundError is returned when no snapshot exists for a route.
type NotFoundError struct {
	Route string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no snapshot for route %q", e.Route)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Save stores snap as the latest pass for its route and appends its hash to
// the route's history. It reports whether the hash was new for the route;
// saving an identical pass again still refreshes the snapshot row.
func (s *Store) Save(ctx context.Context, snap Snapshot) (inserted bool, err error) {
	if snap.Route == "" {
		return false, fmt.Errorf("save snapshot: empty route")
	}
	if err := snap.Hash.Validate(); err != nil {
		return false, fmt.Errorf("save snapshot: hash: %w", err)
	}

	tagsJSON, err := marshalTags(snap.Tags)
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}
	stateJSON, err := snap.State.Marshal()
	if err != nil {
		return false, fmt.Errorf("save snapshot: state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("save snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (route, pass_id, render, hash, tags, state, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(route) DO UPDATE SET
			pass_id = excluded.pass_id,
			render  = excluded.render,
			hash    = excluded.hash,
			tags    = excluded.tags,
			state   = excluded.state,
			seq     = excluded.seq
	`,
		snap.Route,
		snap.PassID,
		string(snap.Render),
		snap.Hash.String(),
		tagsJSON,
		string(stateJSON),
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot: upsert: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO pass_log (route, pass_id, hash, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(route, hash) DO NOTHING
	`,
		snap.Route,
		snap.PassID,
		snap.Hash.String(),
		seq,
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot: log: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save snapshot: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return rows > 0, nil
}

// Load returns the latest snapshot for route, or *NotFoundError.
func (s *Store) Load(ctx context.Context, route string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT route, pass_id, render, hash, tags, state, seq
		FROM snapshots
		WHERE route = ?
	`, route)

	var (
		snap                Snapshot
		render, hash        string
		tagsJSON, stateJSON string
	)
	err := row.Scan(&snap.Route, &snap.PassID, &render, &hash, &tagsJSON, &stateJSON, &snap.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, &NotFoundError{Route: route}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", route, err)
	}

	snap.Render = ir.RenderContext(render)
	if snap.Hash, err = digest.Parse(hash); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: hash: %w", route, err)
	}
	if snap.Tags, err = unmarshalTags(tagsJSON); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", route, err)
	}
	if snap.State, err = hydrate.ParseState([]byte(stateJSON)); err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %q: %w", route, err)
	}
	return snap, nil
}

// Routes lists every route with a snapshot, most recently saved last.
func (s *Store) Routes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route FROM snapshots
		ORDER BY seq ASC, route COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	routes := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}

// History returns every distinct pass hash saved for route, oldest first.
// Returns an empty slice (not nil) when the route was never saved.
func (s *Store) History(ctx context.Context, route string) ([]LogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route, pass_id, hash, seq
		FROM pass_log
		WHERE route = ?
		ORDER BY seq ASC, id ASC
	`, route)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []LogRecord{}
	for rows.Next() {
		var (
			rec  LogRecord
			hash string
		)
		if err := rows.Scan(&rec.Route, &rec.PassID, &hash, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec.Hash, err = digest.Parse(hash); err != nil {
			return nil, fmt.Errorf("scan history: hash: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Delete removes a route's snapshot and history. Deleting an unknown route
// is not an error.
func (s *Store) Delete(ctx context.Context, route string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete route: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE route = ?`, route); err != nil {
		return fmt.Errorf("delete route: snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pass_log WHERE route = ?`, route); err != nil {
		return fmt.Errorf("delete route: log: %w", err)
	}
	return tx.Commit()
}

// marshalTags encodes a tag list with HTML escaping disabled so stored
// content is byte-identical to what the pass produced.
func marshalTags(tags []ir.Tag) (string, error) {
	if tags == nil {
		tags = []ir.Tag{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tags); err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalTags(data string) ([]ir.Tag, error) {
	var tags []ir.Tag
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if tags == nil {
		tags = []ir.Tag{}
	}
	return tags, nil
}
