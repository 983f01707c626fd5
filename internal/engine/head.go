package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/hooks"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/template"
)

// Head is one head manager instance: an entry store, a hook registry and the
// resolution pipeline over them.
//
// Thread-safety model:
//   - Push, Use and the entry handles: safe from any goroutine
//   - Resolve / ResolveTags: safe from any goroutine; concurrent passes over
//     the same store generation and render context share one pass
type Head struct {
	store      *entry.Store
	hooks      *hooks.Registry
	subst      *template.Substitutor
	reconciler *hydrate.Reconciler
	passes     singleflight.Group

	logger       *slog.Logger
	diagnostics  DiagnosticSink
	passIDs      PassIDGenerator
	asyncTimeout time.Duration
	separator    string
	statePayload bool

	mu        sync.Mutex
	stateData map[string]string
}

// Option configures a Head.
type Option func(*Head)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Head) {
		h.logger = l
	}
}

// WithAsyncTimeout bounds how long one entry's deferred values may take
// before the pass proceeds without that entry. Zero (the default) waits
// indefinitely: a stalled promise stalls the pass.
func WithAsyncTimeout(d time.Duration) Option {
	return func(h *Head) {
		h.asyncTimeout = d
	}
}

// WithDiagnostics sets the sink for recovered per-entry and per-handler
// failures.
func WithDiagnostics(sink DiagnosticSink) Option {
	return func(h *Head) {
		h.diagnostics = sink
	}
}

// WithSeparator sets the default %separator value used when no templateParams
// entry names one.
func WithSeparator(sep string) Option {
	return func(h *Head) {
		h.separator = sep
	}
}

// WithPassIDGenerator replaces the UUIDv7 pass id generator.
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(h *Head) {
		h.passIDs = g
	}
}

// WithStatePayload makes server passes embed the hydration state tag.
func WithStatePayload() Option {
	return func(h *Head) {
		h.statePayload = true
	}
}

// WithSubstitutor replaces the template substitutor (and its scan cache).
func WithSubstitutor(s *template.Substitutor) Option {
	return func(h *Head) {
		h.subst = s
	}
}

// WithPlugins registers plugins after the built-in ones.
func WithPlugins(plugins ...hooks.Plugin) Option {
	return func(h *Head) {
		for _, p := range plugins {
			h.hooks.Use(p)
		}
	}
}

// New creates a Head. The built-in template and state plugins are registered
// first, so they run before any plugin added with Use or WithPlugins.
func New(opts ...Option) *Head {
	h := &Head{
		hooks:       hooks.NewRegistry(),
		reconciler:  hydrate.NewReconciler(""),
		logger:      slog.Default(),
		diagnostics: discardSink{},
		passIDs:     UUIDv7Generator{},
		separator:   template.DefaultSeparator,
		stateData:   make(map[string]string),
	}
	h.hooks.Use(h.templatePlugin())
	h.hooks.Use(h.statePlugin())

	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.diagnostics == nil {
		h.diagnostics = discardSink{}
	}
	if h.subst == nil {
		h.subst = template.NewSubstitutor(256, 10*time.Minute)
	}
	h.store = entry.NewStore(h.logger)
	return h
}

// Push adds an entry and returns its handle.
func (h *Head) Push(input ir.Object, opts entry.Options) *entry.Handle {
	return h.store.Push(input, opts)
}

// Use registers a plugin and returns a disposer removing all of its handlers.
func (h *Head) Use(p hooks.Plugin) func() {
	h.logger.Debug("plugin registered", "plugin", p.Name)
	return h.hooks.Use(p)
}

// Hooks exposes the registry, for renderers firing dom:beforeRender and
// ssr:render.
func (h *Head) Hooks() *hooks.Registry {
	return h.hooks
}

// Entries returns a snapshot of the live entries.
func (h *Head) Entries() []*entry.Entry {
	return h.store.Snapshot()
}

// Clear disposes every entry.
func (h *Head) Clear() {
	h.store.Clear()
}

// SetState records a cross-request value embedded in the next server state
// payload.
func (h *Head) SetState(key, value string) {
	h.mu.Lock()
	h.stateData[key] = value
	h.mu.Unlock()
}

// State returns the hydration state: the last rendered hash and the state
// data.
func (h *Head) State() hydrate.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hydrate.State{Hash: h.reconciler.Last(), Data: maps.Clone(h.stateData)}
}

// Hydrate seeds the instance from a server state blob: the reconciler adopts
// the server's hash, so an unchanged first client pass skips the DOM.
func (h *Head) Hydrate(s hydrate.State) {
	h.mu.Lock()
	maps.Copy(h.stateData, s.Data)
	h.mu.Unlock()
	h.reconciler.Seed(s.Hash)
	h.logger.Debug("hydrated from state", "hash", s.Hash, "keys", len(s.Data))
}

// Pass is the frozen result of one resolution pass.
type Pass struct {
	ID         string
	Render     ir.RenderContext
	Generation uint64
	Tags       []ir.Tag
	Hash       digest.Digest

	// ShouldRender is false when the hash matches the last rendered one.
	ShouldRender bool

	Diagnostics []Diagnostic
}

func (p *Pass) clone() *Pass {
	out := *p
	out.Tags = ir.CloneTags(p.Tags)
	out.Diagnostics = append([]Diagnostic(nil), p.Diagnostics...)
	return &out
}

// ResolveTags runs a pass and returns its tag list.
func (h *Head) ResolveTags(ctx context.Context, rc ir.RenderContext) ([]ir.Tag, error) {
	p, err := h.Resolve(ctx, rc)
	if err != nil {
		return nil, err
	}
	return p.Tags, nil
}

// Resolve runs one pass for render context rc. Callers racing on the same
// store generation and render context share a single pass; each gets its own
// copy of the result. The shared pass does not inherit any caller's
// cancellation: a caller whose ctx ends gets ErrCodeAborted while the pass
// runs on for the others, bounded by the async timeout.
func (h *Head) Resolve(ctx context.Context, rc ir.RenderContext) (*Pass, error) {
	if _, err := ir.ParseRenderContext(string(rc)); err != nil {
		return nil, &PassError{Code: ErrCodeInvalidRender, Message: "resolve", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, newAbortedError("", err)
	}

	key := fmt.Sprintf("%d/%s", h.store.Generation(), rc)
	passCtx := context.WithoutCancel(ctx)
	ch := h.passes.DoChan(key, func() (any, error) {
		return h.runPass(passCtx, rc)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pass).clone(), nil
	case <-ctx.Done():
		return nil, newAbortedError("", ctx.Err())
	}
}
