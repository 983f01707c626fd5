package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/headkit/internal/config"
	"github.com/roach88/headkit/internal/engine"
	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/loader"
	"github.com/roach88/headkit/internal/store"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Context   string   // render context; empty means the configured default
	Params    []string // k=v template params
	DBPath    string   // snapshot store; empty means the configured default
	Route     string   // save the pass under this route
	StatePath string   // hydrate from a state blob before resolving
	Hydrate   bool     // hydrate from the route's stored snapshot
	Strict    bool     // fail when the pass reports diagnostics
}

// ResolveResult is the resolve command's payload.
type ResolveResult struct {
	PassID       string   `json:"pass_id"`
	Render       string   `json:"render"`
	Hash         string   `json:"hash"`
	ShouldRender bool     `json:"should_render"`
	Tags         []ir.Tag `json:"tags"`
	Diagnostics  []string `json:"diagnostics,omitempty"`
	Route        string   `json:"route,omitempty"`
	Seq          int64    `json:"seq,omitempty"`
	NewHash      bool     `json:"new_hash,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <document>...",
		Short: "Resolve head documents into a tag list",
		Long: `Push every document (files or directories, in argument order) into one
head instance and run a resolution pass.

With --route the pass is saved to the snapshot store (--db or store.path).
With --hydrate the instance is first seeded from the route's stored state,
so an unchanged pass reports should_render=false.

Examples:
  headkit resolve ./head/site.yaml ./head/about.yaml
  headkit resolve ./head --context client --param siteName=Acme
  headkit resolve ./head --db head.db --route /about --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "render context (server|client)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "template param as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "snapshot store path")
	cmd.Flags().StringVar(&opts.Route, "route", "", "save the pass under this route")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "hydrate from a state blob file")
	cmd.Flags().BoolVar(&opts.Hydrate, "hydrate", false, "hydrate from the route's stored snapshot")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail when the pass reports diagnostics")

	return cmd
}

func runResolve(opts *ResolveOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	sess, err := newSession(cmd, opts.RootOptions, opts.Context, opts.DBPath)
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	if err := sess.push(paths, opts.Params); err != nil {
		return f.Fail(asExitError(err), nil)
	}

	var st *store.Store
	if opts.Route != "" {
		if sess.cfg.Store.Path == "" {
			return f.Fail(NewExitError(ExitCommandError, ErrCodeFlag, "--route needs --db or store.path"), nil)
		}
		if st, err = store.Open(sess.cfg.Store.Path); err != nil {
			return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "open store", err), nil)
		}
		defer st.Close()
	} else if opts.Hydrate {
		return f.Fail(NewExitError(ExitCommandError, ErrCodeFlag, "--hydrate needs --route"), nil)
	}

	if opts.StatePath != "" {
		s, err := readState(opts.StatePath)
		if err != nil {
			return f.Fail(asExitError(err), nil)
		}
		sess.head.Hydrate(s)
		f.VerboseLog("hydrated from %s (hash %s)", opts.StatePath, s.Hash)
	}
	if opts.Hydrate {
		snap, err := st.Load(cmd.Context(), opts.Route)
		switch {
		case store.IsNotFound(err):
			f.VerboseLog("no snapshot for %s; resolving cold", opts.Route)
		case err != nil:
			return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "load snapshot", err), nil)
		default:
			s := snap.State
			s.Hash = snap.Hash
			sess.head.Hydrate(s)
			f.VerboseLog("hydrated from snapshot %s seq %d", opts.Route, snap.Seq)
		}
	}

	pass, err := sess.head.Resolve(cmd.Context(), sess.render)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, ErrCodeResolve, "resolve", err), nil)
	}

	result := ResolveResult{
		PassID:       pass.ID,
		Render:       string(pass.Render),
		Hash:         pass.Hash.String(),
		ShouldRender: pass.ShouldRender,
		Tags:         pass.Tags,
	}
	for _, d := range pass.Diagnostics {
		result.Diagnostics = append(result.Diagnostics, d.String())
	}

	if st != nil {
		snap := store.Snapshot{
			Route:  opts.Route,
			PassID: pass.ID,
			Render: pass.Render,
			Hash:   pass.Hash,
			Tags:   pass.Tags,
			State:  sess.head.State(),
		}
		inserted, err := st.Save(cmd.Context(), snap)
		if err != nil {
			return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "save snapshot", err), nil)
		}
		saved, err := st.Load(cmd.Context(), opts.Route)
		if err != nil {
			return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "reload snapshot", err), nil)
		}
		result.Route = opts.Route
		result.Seq = saved.Seq
		result.NewHash = inserted
	}

	if opts.Strict && len(result.Diagnostics) > 0 {
		return f.Fail(NewExitError(ExitFailure, ErrCodeDiagnostics,
			fmt.Sprintf("pass reported %d diagnostic(s)", len(result.Diagnostics))), result.Diagnostics)
	}

	return f.Success(result, func(w io.Writer) {
		writeTags(w, result.Tags)
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "! %s\n", d)
		}
		fmt.Fprintf(w, "hash %s\n", result.Hash)
		if result.Route != "" {
			fmt.Fprintf(w, "saved %s seq %d (new hash: %t)\n", result.Route, result.Seq, result.NewHash)
		}
	})
}

// session is one Head built from the merged configuration.
type session struct {
	cfg    *config.Config
	head   *engine.Head
	render ir.RenderContext
}

func newSession(cmd *cobra.Command, opts *RootOptions, renderContext, dbPath string) (*session, error) {
	overrides := map[string]any{}
	if renderContext != "" {
		overrides["engine.render_context"] = renderContext
	}
	if dbPath != "" {
		overrides["store.path"] = dbPath
	}
	cfg, err := opts.loadConfig(overrides)
	if err != nil {
		return nil, err
	}
	logger, err := opts.logger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		head:   engine.New(cfg.EngineOptions(logger)...),
		render: cfg.RenderContext(),
	}, nil
}

// push loads every document into the head, then the params overlay.
func (s *session) push(paths []string, params []string) error {
	docs, err := loader.LoadAll(paths)
	if err != nil {
		return loadFailure(err)
	}
	for _, doc := range docs {
		doc.Push(s.head)
	}
	overlay, err := paramsEntry(params)
	if err != nil {
		return err
	}
	if overlay != nil {
		s.head.Push(overlay, entry.Options{})
	}
	return nil
}

// paramsEntry builds a templateParams input from k=v pairs. It merges into
// params the documents declared instead of replacing them.
func paramsEntry(params []string) (ir.Object, error) {
	if len(params) == 0 {
		return nil, nil
	}
	obj := ir.Object{"tagDuplicateStrategy": ir.String(string(ir.DuplicateMerge))}
	for _, p := range params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, NewExitError(ExitCommandError, ErrCodeFlag, fmt.Sprintf("invalid --param %q: want key=value", p))
		}
		obj[k] = ir.String(v)
	}
	return ir.Object{ir.KindTemplateParams: obj}, nil
}

func readState(path string) (hydrate.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return hydrate.State{}, WrapExitError(ExitCommandError, ErrCodeState, "read state", err)
	}
	s, err := hydrate.ParseState(data)
	if err != nil {
		return hydrate.State{}, WrapExitError(ExitCommandError, ErrCodeState, "read state", err)
	}
	return s, nil
}

// asExitError passes ExitErrors through and wraps anything else.
func asExitError(err error) *ExitError {
	if ee, ok := err.(*ExitError); ok {
		return ee
	}
	return WrapExitError(ExitFailure, ErrCodeGeneric, "command failed", err)
}

// writeTags prints one line per tag: kind, sorted props, then content.
func writeTags(w io.Writer, tags []ir.Tag) {
	for _, t := range tags {
		var b strings.Builder
		b.WriteString(t.Tag)
		names := make([]string, 0, len(t.Props))
		for k := range t.Props {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if v := t.Props[k]; v == "" {
				fmt.Fprintf(&b, " %s", k)
			} else {
				fmt.Fprintf(&b, " %s=%q", k, v)
			}
		}
		if c := t.Content(); c != "" {
			fmt.Fprintf(&b, " %q", c)
		}
		if t.TagPosition != "" && t.TagPosition != ir.PositionHead {
			fmt.Fprintf(&b, " @%s", t.TagPosition)
		}
		fmt.Fprintln(w, b.String())
	}
}
