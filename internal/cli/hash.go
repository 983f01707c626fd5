package cli

import (
	"fmt"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

// HashOptions holds flags for the hash command.
type HashOptions struct {
	*RootOptions
	Context string
	Params  []string
	Tags    bool   // also print per-tag content hashes
	Expect  string // fail unless the pass hash equals this digest
}

// TagHash is one tag's content hash.
type TagHash struct {
	Tag         string `json:"tag"`
	DedupeKey   string `json:"dedupe_key"`
	ContentHash string `json:"content_hash"`
}

// HashResult is the hash command's payload.
type HashResult struct {
	Render string    `json:"render"`
	Hash   string    `json:"hash"`
	Tags   []TagHash `json:"tags,omitempty"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "hash <document>...",
		Short: "Print the pass hash of head documents",
		Long: `Resolve documents and print the pass hash: the digest of the final tag
list that decides whether a renderer must touch the document.

With --expect the command exits 1 when the hash differs, which makes it
usable as a CI check that a change did not alter rendered head output.

Examples:
  headkit hash ./head
  headkit hash ./head --tags --format json
  headkit hash ./head --expect sha256:4f0c...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHash(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Context, "context", "", "render context (server|client)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "template param as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Tags, "tags", false, "print per-tag content hashes")
	cmd.Flags().StringVar(&opts.Expect, "expect", "", "expected pass hash")

	return cmd
}

func runHash(opts *HashOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var expect digest.Digest
	if opts.Expect != "" {
		expect = digest.Digest(opts.Expect)
		if err := expect.Validate(); err != nil {
			return f.Fail(WrapExitError(ExitCommandError, ErrCodeFlag, "invalid --expect", err), nil)
		}
	}

	sess, err := newSession(cmd, opts.RootOptions, opts.Context, "")
	if err != nil {
		return f.Fail(asExitError(err), nil)
	}
	if err := sess.push(paths, opts.Params); err != nil {
		return f.Fail(asExitError(err), nil)
	}
	pass, err := sess.head.Resolve(cmd.Context(), sess.render)
	if err != nil {
		return f.Fail(WrapExitError(ExitFailure, ErrCodeResolve, "resolve", err), nil)
	}

	result := HashResult{Render: string(pass.Render), Hash: pass.Hash.String()}
	if opts.Tags {
		for _, t := range pass.Tags {
			result.Tags = append(result.Tags, TagHash{Tag: t.Tag, DedupeKey: t.DedupeKey, ContentHash: t.ContentHash})
		}
	}

	if expect != "" && expect != pass.Hash {
		return f.Fail(NewExitError(ExitFailure, ErrCodeResolve,
			fmt.Sprintf("pass hash %s, expected %s", pass.Hash, expect)), result)
	}

	return f.Success(result, func(w io.Writer) {
		for _, t := range result.Tags {
			fmt.Fprintf(w, "%s  %s\n", t.ContentHash, t.DedupeKey)
		}
		fmt.Fprintln(w, result.Hash)
	})
}
