package engine

import (
	"fmt"

	"github.com/roach88/headkit/internal/hooks"
	"github.com/roach88/headkit/internal/ir"
)

// Stage names the pipeline stage a diagnostic came from.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageExtract   Stage = "extract"
	StageNormalise Stage = "normalise"
	StageHook      Stage = "hook"
)

// Diagnostic reports a failure the pass recovered from. EntryID is zero when
// the failure is not tied to one entry.
type Diagnostic struct {
	PassID  string
	Render  ir.RenderContext
	Stage   Stage
	EntryID int64
	Hook    hooks.Name
	Err     error
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s [%s]", d.Stage, d.Render)
	if d.Hook != "" {
		s += " hook=" + string(d.Hook)
	}
	if d.EntryID != 0 {
		s += fmt.Sprintf(" entry=%d", d.EntryID)
	}
	return s + ": " + d.Err.Error()
}

// DiagnosticSink receives diagnostics as a pass produces them. Report is
// called from the pass goroutine; implementations must not block.
type DiagnosticSink interface {
	Report(Diagnostic)
}

// DiagnosticFunc adapts a function to DiagnosticSink.
type DiagnosticFunc func(Diagnostic)

// Report calls f(d).
func (f DiagnosticFunc) Report(d Diagnostic) {
	f(d)
}

type discardSink struct{}

func (discardSink) Report(Diagnostic) {}
