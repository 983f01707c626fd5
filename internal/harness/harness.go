package harness

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/roach88/headkit/internal/engine"
	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/loader"
	"github.com/roach88/headkit/internal/store"
	"github.com/roach88/headkit/internal/testutil"
)

// Harness is the scenario execution state: one Head and the named handles
// of its inline entries.
type Harness struct {
	head    *engine.Head
	render  ir.RenderContext
	handles map[string]*entry.Handle
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create a Head with a constant pass id and discarded logs
// 2. Push documents, then inline entries
// 3. Apply steps
// 4. Resolve one pass (round-tripped through a snapshot store when Route is set)
// 5. Evaluate assertions
//
// The returned error reports a scenario that could not run at all; assertion
// failures land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context bounding the pass.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	render := ir.RenderServer
	if scenario.Render != "" {
		render = ir.RenderContext(scenario.Render)
	}
	passID := scenario.PassID
	if passID == "" {
		passID = DefaultPassID
	}

	logger := testutil.DiscardLogger()
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithPassIDGenerator(testutil.NewConstantPassID(passID)),
	}
	if scenario.StatePayload {
		opts = append(opts, engine.WithStatePayload())
	}

	h := &Harness{
		head:    engine.New(opts...),
		render:  render,
		handles: make(map[string]*entry.Handle),
		logger:  logger,
	}

	if err := h.push(scenario); err != nil {
		return nil, err
	}
	if err := h.applySteps(scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to apply steps: %w", err)
	}

	pass, err := h.head.Resolve(ctx, render)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve: %w", err)
	}

	result := NewResult()
	result.PassID = pass.ID
	result.Hash = pass.Hash.String()
	result.Tags = pass.Tags
	for _, d := range pass.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, d.String())
	}

	if scenario.Route != "" {
		if err := roundTrip(ctx, scenario.Route, pass, h.head.State(), result); err != nil {
			return nil, err
		}
	}

	actx := &AssertionContext{Ctx: ctx, Head: h.head, Render: render}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) push(scenario *Scenario) error {
	docs, err := loader.LoadAll(scenario.Documents)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	for _, doc := range docs {
		doc.Push(h.head)
	}

	for i, e := range scenario.Entries {
		input, err := toObject(e.Input)
		if err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
		opts, err := entryOptions(e)
		if err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
		handle := h.head.Push(input, opts)
		if e.Name != "" {
			h.handles[e.Name] = handle
		}
	}
	return nil
}

func (h *Harness) applySteps(steps []Step) error {
	for i, step := range steps {
		switch {
		case step.Patch != "":
			input, err := toObject(step.Input)
			if err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
			if err := h.handles[step.Patch].Patch(input); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		case step.Dispose != "":
			if err := h.handles[step.Dispose].Dispose(); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		h.logger.Debug("step applied", "step", i, "patch", step.Patch, "dispose", step.Dispose)
	}
	return nil
}

func entryOptions(e EntryStep) (entry.Options, error) {
	var opts entry.Options
	var err error
	if opts.Mode, err = ir.ParseMode(e.Mode); err != nil {
		return opts, err
	}
	if opts.TagPosition, err = ir.ParseTagPosition(e.TagPosition); err != nil {
		return opts, err
	}
	prio, err := ir.FromGo(e.TagPriority)
	if err != nil {
		return opts, fmt.Errorf("tag_priority: %w", err)
	}
	if opts.TagPriority, err = ir.PriorityFromValue(prio); err != nil {
		return opts, err
	}
	return opts, nil
}

func toObject(m map[string]any) (ir.Object, error) {
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, fmt.Errorf("convert input: %w", err)
	}
	return v.(ir.Object), nil
}

// roundTrip saves the pass into a fresh in-memory snapshot store, loads it
// back and records a failure when anything was lost.
func roundTrip(ctx context.Context, route string, pass *engine.Pass, state hydrate.State, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	snap := store.Snapshot{
		Route:  route,
		PassID: pass.ID,
		Render: pass.Render,
		Hash:   pass.Hash,
		Tags:   pass.Tags,
		State:  state,
	}
	if _, err := st.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	loaded, err := st.Load(ctx, route)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	if loaded.Hash != pass.Hash {
		result.AddError(fmt.Sprintf("snapshot: hash %s reloaded as %s", pass.Hash, loaded.Hash))
	}
	if !reflect.DeepEqual(normaliseTags(loaded.Tags), normaliseTags(pass.Tags)) {
		result.AddError("snapshot: reloaded tags differ from the resolved pass")
	}
	return nil
}

// normaliseTags maps empty props to nil so a JSON round trip compares equal.
func normaliseTags(tags []ir.Tag) []ir.Tag {
	out := ir.CloneTags(tags)
	for i := range out {
		if len(out[i].Props) == 0 {
			out[i].Props = nil
		}
	}
	return out
}
