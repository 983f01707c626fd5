package engine

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/hooks"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/normalize"
)

// pass carries the state of one resolution pass through its stages.
type pass struct {
	h      *Head
	id     string
	render ir.RenderContext
	diags  []Diagnostic
}

func (p *pass) report(stage Stage, entryID int64, hook hooks.Name, err error) {
	d := Diagnostic{
		PassID:  p.id,
		Render:  p.render,
		Stage:   stage,
		EntryID: entryID,
		Hook:    hook,
		Err:     err,
	}
	p.diags = append(p.diags, d)
	p.h.logger.Warn("pass recovered from failure",
		"pass_id", p.id,
		"stage", stage,
		"entry_id", entryID,
		"hook", hook,
		"error", err,
	)
	p.h.diagnostics.Report(d)
}

func (p *pass) reportHookErrors(hook hooks.Name, entryID int64, errs []error) {
	for _, err := range errs {
		p.report(StageHook, entryID, hook, err)
	}
}

// runPass executes the pipeline stages in order. Each stage finishes for
// every tag before the next one starts.
func (h *Head) runPass(ctx context.Context, rc ir.RenderContext) (*Pass, error) {
	start := time.Now()
	p := &pass{h: h, id: h.passIDs.Generate(), render: rc}
	log := h.logger.With("pass_id", p.id, "render", rc)

	snapshot, generation := h.store.SnapshotAt()
	log.Debug("pass started", "entries", len(snapshot), "generation", generation)

	// 1. Resolve deferred values, then entries:resolve.
	resolved, failures, err := normalize.ResolveEntries(ctx, snapshot, normalize.ResolveOptions{
		Render:  rc,
		Timeout: h.asyncTimeout,
	})
	if err != nil {
		return nil, newAbortedError(p.id, err)
	}
	for _, f := range failures {
		p.report(StageResolve, failedEntryID(f), "", f)
	}
	for _, e := range resolved {
		h.store.CacheResolved(e.ID, generation, e.Resolved)
	}

	ec := &hooks.EntriesContext{Render: rc, Entries: resolved}
	p.reportHookErrors(hooks.EntriesResolve, 0, h.hooks.EntriesResolve.Emit(ctx, ec))
	if err := ctx.Err(); err != nil {
		return nil, newAbortedError(p.id, err)
	}

	// 2. Extract and normalise; tag:normalise per tag.
	var tags []ir.Tag
	for _, e := range ec.Entries {
		entryTags, ok := p.normaliseEntry(ctx, e)
		if ok {
			tags = append(tags, entryTags...)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, newAbortedError(p.id, err)
	}
	log.Debug("tags normalised", "tags", len(tags))

	// 3. Dedupe.
	tags = dedupe(tags)
	log.Debug("tags deduplicated", "tags", len(tags))

	// 4. Sanitize; tag:resolved per tag. A failure drops every tag of the
	// offending entry.
	failed := map[int64]bool{}
	for i := range tags {
		t := &tags[i]
		sanitize(t, rc, h.logger)
		errs := h.hooks.TagResolved.Emit(ctx, &hooks.TagContext{Render: rc, Tag: t})
		if len(errs) > 0 {
			p.reportHookErrors(hooks.TagResolved, t.EntryID, errs)
			failed[t.EntryID] = true
		}
	}
	if len(failed) > 0 {
		tags = slices.DeleteFunc(tags, func(t ir.Tag) bool { return failed[t.EntryID] })
	}

	// 5. Priority sort.
	sortTags(tags)

	// 6. tags:resolve, tags:afterResolve.
	tc := &hooks.TagsContext{Render: rc, Tags: tags}
	p.reportHookErrors(hooks.TagsResolve, 0, h.hooks.TagsResolve.Emit(ctx, tc))
	p.reportHookErrors(hooks.TagsAfterResolve, 0, h.hooks.TagsAfterResolve.Emit(ctx, tc))
	if err := ctx.Err(); err != nil {
		return nil, newAbortedError(p.id, err)
	}

	// Freeze.
	final := stripInternal(tc.Tags)
	for i := range final {
		final[i].ContentHash = ir.MustTagContentHash(final[i])
	}
	hash, err := hydrate.PassHash(final)
	if err != nil {
		return nil, &PassError{Code: ErrCodeHashFailed, Message: "hash tag list", PassID: p.id, Err: err}
	}
	h.refreshState(final, hash)
	shouldRender := h.reconciler.Observe(hash)

	log.Info("pass resolved",
		"tags", len(final),
		"hash", hash,
		"should_render", shouldRender,
		"diagnostics", len(p.diags),
		"duration", time.Since(start),
	)
	return &Pass{
		ID:           p.id,
		Render:       rc,
		Generation:   generation,
		Tags:         final,
		Hash:         hash,
		ShouldRender: shouldRender,
		Diagnostics:  p.diags,
	}, nil
}

// normaliseEntry extracts and normalises one entry's tags. Any failure drops
// every tag of the entry for this pass.
func (p *pass) normaliseEntry(ctx context.Context, e *entry.Entry) ([]ir.Tag, bool) {
	candidates, err := normalize.Extract(e, p.h.logger)
	if err != nil {
		p.report(StageExtract, e.ID, "", err)
		return nil, false
	}

	tags := make([]ir.Tag, 0, len(candidates))
	for _, c := range candidates {
		t, err := normalize.NormaliseTag(c)
		if err != nil {
			p.report(StageNormalise, e.ID, "", err)
			return nil, false
		}
		if errs := p.h.hooks.TagNormalise.Emit(ctx, &hooks.TagContext{Render: p.render, Tag: &t, Entry: e}); len(errs) > 0 {
			p.reportHookErrors(hooks.TagNormalise, e.ID, errs)
			return nil, false
		}
		hash, err := ir.TagContentHash(t)
		if err != nil {
			p.report(StageNormalise, e.ID, "", err)
			return nil, false
		}
		t.ContentHash = hash
		tags = append(tags, t)
	}
	return tags, true
}

// stripInternal drops the pipeline-internal kinds and copies the list so the
// frozen result shares nothing with hook contexts.
func stripInternal(tags []ir.Tag) []ir.Tag {
	out := make([]ir.Tag, 0, len(tags))
	for _, t := range tags {
		if t.Tag == ir.KindTitleTemplate || t.Tag == ir.KindTemplateParams {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

func failedEntryID(err error) int64 {
	var ne *normalize.NormalizationError
	if errors.As(err, &ne) {
		return ne.EntryID
	}
	var te *normalize.UnresolvedAsyncTimeoutError
	if errors.As(err, &te) {
		return te.EntryID
	}
	return 0
}
