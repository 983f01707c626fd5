package harness

import (
	"github.com/roach88/headkit/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	PassID string   `json:"pass_id"`
	Hash   string   `json:"hash"`
	Tags   []ir.Tag `json:"tags"`

	// Diagnostics are the pass's recovered failures, one line each.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Tags:   []ir.Tag{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
