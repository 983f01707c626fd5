// Package entry implements the entry store: the set of live head entries a
// Head instance owns, in insertion order.
//
// Mutation (Push, Patch, Dispose) is synchronous and atomic under one mutex.
// Resolution passes never read the live records directly; they work on the
// clones returned by Snapshot, so a pass never observes a half-applied patch
// and never mutates an entry another pass is reading.
package entry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/headkit/internal/ir"
)

// Options are the per-entry options recognised by the engine.
type Options struct {
	// Mode restricts which render target consumes the entry. Zero means all.
	Mode ir.Mode

	// Transform is applied to the resolved input before tag extraction.
	// It must be pure: it may run once per pass.
	Transform func(ir.Object) ir.Object

	// TagPriority is the default priority of every tag the entry produces.
	TagPriority ir.Priority

	// TagPosition is the default position of every tag the entry produces.
	TagPosition ir.TagPosition
}

// Entry is a snapshot of one caller's contribution.
type Entry struct {
	ID int64

	// Input is the payload as supplied by the caller. It may hold getters and
	// promises.
	Input ir.Object

	// Resolved is the fully-resolved input cached by the last pass, or nil when
	// the entry is new or was patched since.
	Resolved ir.Object

	Options Options

	// Dirty is set by Patch and cleared once a pass caches a resolved input.
	Dirty bool
}

type record struct {
	entry       Entry
	sideEffects map[string]func()
}

// Store holds the live entries of one Head.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	clock      *Clock
	records    map[int64]*record
	order      []int64
	generation uint64
	logger     *slog.Logger
}

// NewStore creates an empty store with its own id clock.
func NewStore(logger *slog.Logger) *Store {
	return NewStoreWithClock(NewClock(), logger)
}

// NewStoreWithClock creates an empty store using clock for ids.
func NewStoreWithClock(clock *Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		clock:   clock,
		records: make(map[int64]*record),
		logger:  logger,
	}
}

// Push registers a new entry and returns its handle. The resolved input is
// computed lazily by the next pass.
func (s *Store) Push(input ir.Object, opts Options) *Handle {
	if opts.Mode == "" {
		opts.Mode = ir.ModeAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.clock.Next()
	s.records[id] = &record{
		entry: Entry{ID: id, Input: input, Options: opts, Dirty: true},
	}
	s.order = append(s.order, id)
	s.generation++

	s.logger.Debug("entry pushed", "entry_id", id, "mode", opts.Mode, "fields", len(input))
	return &Handle{id: id, store: s}
}

// Snapshot returns clones of all live entries in insertion order.
func (s *Store) Snapshot() []*Entry {
	entries, _ := s.SnapshotAt()
	return entries
}

// SnapshotAt is Snapshot plus the generation the snapshot was taken at, read
// under the same lock.
func (s *Store) SnapshotAt() ([]*Entry, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		e := rec.entry
		e.Input = rec.entry.Input.Clone()
		e.Resolved = rec.entry.Resolved.Clone()
		out = append(out, &e)
	}
	return out, s.generation
}

// Generation changes on every Push, Patch and Dispose. Two passes started at
// the same generation see the same entry set.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Live reports whether id names a live entry.
func (s *Store) Live(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

// CacheResolved records the resolved input computed by a pass. It is a no-op
// when the entry was disposed or patched after the pass took its snapshot
// (generation mismatch).
func (s *Store) CacheResolved(id int64, generation uint64, resolved ir.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || generation != s.generation {
		return
	}
	rec.entry.Resolved = resolved.Clone()
	rec.entry.Dirty = false
}

// Clear disposes every live entry, running their side effects.
func (s *Store) Clear() {
	s.mu.Lock()
	ids := append([]int64(nil), s.order...)
	s.mu.Unlock()

	for _, id := range ids {
		h := &Handle{id: id, store: s}
		_ = h.Dispose()
	}
}

func (s *Store) patch(id int64, input ir.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return &EntryDisposedError{ID: id, Op: "patch"}
	}
	rec.entry.Input = input
	rec.entry.Resolved = nil
	rec.entry.Dirty = true
	s.generation++

	s.logger.Debug("entry patched", "entry_id", id, "fields", len(input))
	return nil
}

func (s *Store) dispose(id int64) error {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return &EntryDisposedError{ID: id, Op: "dispose"}
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.generation++
	effects := rec.sideEffects
	s.mu.Unlock()

	// Side effects run outside the lock: cleanups commonly touch the DOM
	// renderer, which may call back into the store.
	keys := make([]string, 0, len(effects))
	for k := range effects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.runEffect(id, k, effects[k])
	}

	s.logger.Debug("entry disposed", "entry_id", id, "side_effects", len(keys))
	return nil
}

func (s *Store) runEffect(id int64, key string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("side effect cleanup panicked",
				"entry_id", id,
				"key", key,
				"panic", r,
			)
		}
	}()
	fn()
}

func (s *Store) setSideEffect(id int64, key string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return &EntryDisposedError{ID: id, Op: "set side effect"}
	}
	if rec.sideEffects == nil {
		rec.sideEffects = make(map[string]func())
	}
	rec.sideEffects[key] = fn
	return nil
}

func (s *Store) takeSideEffect(id int64, key string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &EntryDisposedError{ID: id, Op: "run side effect"}
	}
	fn, ok := rec.sideEffects[key]
	if !ok {
		return nil, nil
	}
	delete(rec.sideEffects, key)
	return fn, nil
}

func (s *Store) snapshotOne(id int64) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &EntryDisposedError{ID: id, Op: "read"}
	}
	e := rec.entry
	e.Input = rec.entry.Input.Clone()
	e.Resolved = rec.entry.Resolved.Clone()
	return &e, nil
}
