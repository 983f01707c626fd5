package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/headkit/internal/loader"
)

// DocumentResult is the validation outcome of one document.
type DocumentResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Documents []DocumentResult `json:"documents"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Validate head documents without resolving them",
		Long: `Parse every document (YAML, JSON or CUE) and check it against the head
document schema and entry option rules. Unlike resolve, validation does not
stop at the first bad document: every document is reported.

Exit codes:
  0 - All documents valid
  1 - One or more documents invalid
  2 - Command error (missing path, no documents found)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	files, err := expandPaths(paths)
	if err != nil {
		return f.Fail(loadFailure(err), nil)
	}
	f.VerboseLog("validating %d document(s)", len(files))

	result := ValidationResult{Valid: true, Documents: make([]DocumentResult, 0, len(files))}
	for _, path := range files {
		doc, err := loader.Load(path)
		if err != nil {
			dr := DocumentResult{Path: path, Error: err.Error(), Code: loader.ErrCodeGeneric}
			var le *loader.LoadError
			if errors.As(err, &le) {
				dr.Code = le.Code
			}
			result.Documents = append(result.Documents, dr)
			result.Valid = false
			continue
		}
		result.Documents = append(result.Documents, DocumentResult{Path: path, Valid: true, Entries: len(doc.Entries)})
	}

	if !result.Valid {
		invalid, code := 0, ""
		for _, d := range result.Documents {
			if !d.Valid {
				if invalid == 0 {
					code = d.Code
				}
				invalid++
			}
		}
		if f.Format != "json" {
			writeValidation(f.Writer, result)
		}
		return f.Fail(NewExitError(ExitFailure, code,
			fmt.Sprintf("%d of %d document(s) invalid", invalid, len(result.Documents))), result)
	}

	return f.Success(result, func(w io.Writer) {
		writeValidation(w, result)
		fmt.Fprintln(w, "✓ All documents valid")
	})
}

// expandPaths resolves directories to the documents below them.
func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &loader.LoadError{Code: loader.ErrCodeNotFound, Path: p, Message: "stat document", Err: err}
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := loader.Find(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func writeValidation(w io.Writer, result ValidationResult) {
	for _, d := range result.Documents {
		if d.Valid {
			fmt.Fprintf(w, "✓ %s (%d entries)\n", d.Path, d.Entries)
		} else {
			fmt.Fprintf(w, "✗ %s\n  %s\n", d.Path, d.Error)
		}
	}
}
