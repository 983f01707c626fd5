package normalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

// ResolveOptions configure ResolveEntries.
type ResolveOptions struct {
	// Render is the render target; entries whose mode excludes it are skipped.
	Render ir.RenderContext

	// Timeout bounds how long one entry's deferred values may take. Zero waits
	// indefinitely.
	Timeout time.Duration
}

// ResolveEntries resolves the deferred values of every entry the render target
// consumes, concurrently, and applies each entry's transform. It returns the
// resolved entries in input order and one error per entry that failed; a
// failed entry is left out. The returned error is non-nil only when ctx ends.
//
// Entries are modified in place; callers pass store snapshots.
func ResolveEntries(ctx context.Context, entries []*entry.Entry, opts ResolveOptions) ([]*entry.Entry, []error, error) {
	var active []*entry.Entry
	for _, e := range entries {
		if e.Options.Mode.Allows(opts.Render) {
			active = append(active, e)
		}
	}

	// Entry failures are collected, not returned, so one failing entry never
	// cancels its siblings. Only the end of ctx fails the group.
	failures := make([]error, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range active {
		g.Go(func() error {
			failures[i] = resolveOne(gctx, e, opts.Timeout)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]*entry.Entry, 0, len(active))
	var errs []error
	for i, e := range active {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		out = append(out, e)
	}
	return out, errs, nil
}

func resolveOne(ctx context.Context, e *entry.Entry, timeout time.Duration) error {
	rctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resolved, err := ir.ResolveObject(rctx, e.Input)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && rctx.Err() != nil {
			return &UnresolvedAsyncTimeoutError{EntryID: e.ID, Timeout: timeout}
		}
		return &NormalizationError{
			Code:    ErrCodeResolveFailed,
			EntryID: e.ID,
			Message: "resolve input",
			Err:     err,
		}
	}

	if e.Options.Transform != nil {
		resolved, err = applyTransform(rctx, e.Options.Transform, resolved)
		if err != nil {
			return &NormalizationError{
				Code:    ErrCodeTransformFailed,
				EntryID: e.ID,
				Message: "transform",
				Err:     err,
			}
		}
	}

	e.Resolved = resolved
	return nil
}

// applyTransform runs fn on a copy of in. A transform that reintroduces
// deferred values has them resolved again.
func applyTransform(ctx context.Context, fn func(ir.Object) ir.Object, in ir.Object) (out ir.Object, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	out = fn(in.Clone())
	if out == nil {
		return ir.Object{}, nil
	}
	return ir.ResolveObject(ctx, out)
}
