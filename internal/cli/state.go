package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/store"
)

// StateOptions holds flags shared by the state subcommands.
type StateOptions struct {
	*RootOptions
	DBPath string
}

// SnapshotInfo is the state show payload.
type SnapshotInfo struct {
	Route   string            `json:"route"`
	PassID  string            `json:"pass_id"`
	Render  string            `json:"render"`
	Hash    string            `json:"hash"`
	Seq     int64             `json:"seq"`
	Tags    int               `json:"tags"`
	State   map[string]string `json:"state,omitempty"`
	History []HistoryEntry    `json:"history"`
}

// HistoryEntry is one distinct pass hash saved for a route.
type HistoryEntry struct {
	PassID string `json:"pass_id"`
	Hash   string `json:"hash"`
	Seq    int64  `json:"seq"`
}

// NewStateCommand creates the state command and its subcommands.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the snapshot store",
		Long: `Inspect per-route snapshots saved by resolve --route.

The export subcommand writes the hydration blob a server pass would embed,
ready for resolve --state.`,
	}
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "snapshot store path (default store.path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List routes with a snapshot, most recently saved last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <route>",
		Short: "Show a route's latest snapshot and hash history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateShow(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "export <route>",
		Short: "Print the route's hydration state blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateExport(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <route>",
		Short: "Delete a route's snapshot and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStateDelete(opts, args[0], cmd)
		},
	})

	return cmd
}

// openStore opens an existing store. Inspection never creates a database.
func (o *StateOptions) openStore() (*store.Store, error) {
	overrides := map[string]any{}
	if o.DBPath != "" {
		overrides["store.path"] = o.DBPath
	}
	cfg, err := o.loadConfig(overrides)
	if err != nil {
		return nil, err
	}
	path := cfg.Store.Path
	if path == "" {
		return nil, NewExitError(ExitCommandError, ErrCodeFlag, "no store: pass --db or set store.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "open store", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeStore, "open store", err)
	}
	return st, nil
}

func runStateList(opts *StateOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	defer st.Close()

	routes, err := st.Routes(cmd.Context())
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "list routes", err), nil)
	}
	return f.Success(routes, func(w io.Writer) {
		for _, r := range routes {
			fmt.Fprintln(w, r)
		}
	})
}

func runStateShow(opts *StateOptions, route string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	defer st.Close()

	snap, err := loadSnapshot(cmd, st, route)
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	history, err := st.History(cmd.Context(), route)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "load history", err), nil)
	}

	info := SnapshotInfo{
		Route:   snap.Route,
		PassID:  snap.PassID,
		Render:  string(snap.Render),
		Hash:    snap.Hash.String(),
		Seq:     snap.Seq,
		Tags:    len(snap.Tags),
		State:   snap.State.Data,
		History: make([]HistoryEntry, 0, len(history)),
	}
	for _, rec := range history {
		info.History = append(info.History, HistoryEntry{PassID: rec.PassID, Hash: rec.Hash.String(), Seq: rec.Seq})
	}

	return f.Success(info, func(w io.Writer) {
		fmt.Fprintf(w, "route   %s\n", info.Route)
		fmt.Fprintf(w, "pass    %s (%s)\n", info.PassID, info.Render)
		fmt.Fprintf(w, "hash    %s\n", info.Hash)
		fmt.Fprintf(w, "seq     %d\n", info.Seq)
		fmt.Fprintf(w, "tags    %d\n", info.Tags)
		fmt.Fprintf(w, "history %d hash(es)\n", len(info.History))
		for _, h := range info.History {
			fmt.Fprintf(w, "  %4d  %s  %s\n", h.Seq, h.Hash, h.PassID)
		}
	})
}

// runStateExport writes the raw blob in both formats: it is the input of
// resolve --state, not a report.
func runStateExport(opts *StateOptions, route string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	defer st.Close()

	snap, err := loadSnapshot(cmd, st, route)
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	blob, err := hydrate.State{Hash: snap.Hash, Data: snap.State.Data}.Marshal()
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, ErrCodeState, "encode state", err), nil)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(blob))
	return err
}

func runStateDelete(opts *StateOptions, route string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	st, err := opts.openStore()
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), route); err != nil {
		return f.Fail(WrapExitError(ExitCommandError, ErrCodeStore, "delete route", err), nil)
	}
	return f.Success(map[string]string{"deleted": route}, func(w io.Writer) {
		fmt.Fprintf(w, "deleted %s\n", route)
	})
}

func loadSnapshot(cmd *cobra.Command, st *store.Store, route string) (store.Snapshot, error) {
	snap, err := st.Load(cmd.Context(), route)
	if store.IsNotFound(err) {
		return store.Snapshot{}, WrapExitError(ExitFailure, ErrCodeNoSnapshot, "show "+route, err)
	}
	if err != nil {
		return store.Snapshot{}, WrapExitError(ExitCommandError, ErrCodeStore, "load snapshot", err)
	}
	return snap, nil
}
