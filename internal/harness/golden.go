package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/headkit/internal/ir"
)

// PassSnapshot captures the golden view of a resolved pass: what a renderer
// would emit, in order. Content hashes and positions are left out; order is
// the array order.
type PassSnapshot struct {
	ScenarioName string
	PassID       string
	Tags         []ir.Tag
	Diagnostics  []string
}

// toCanonicalMap converts a PassSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *PassSnapshot) toCanonicalMap() map[string]any {
	tags := make([]any, len(s.Tags))
	for i, t := range s.Tags {
		m := map[string]any{
			"tag":        t.Tag,
			"dedupe_key": t.DedupeKey,
			"entry_id":   t.EntryID,
		}
		if len(t.Props) > 0 {
			m["props"] = t.Props
		}
		if t.TextContent != "" {
			m["text_content"] = t.TextContent
		}
		if t.InnerHTML != "" {
			m["inner_html"] = t.InnerHTML
		}
		if t.TagPosition != "" && t.TagPosition != ir.PositionHead {
			m["tag_position"] = string(t.TagPosition)
		}
		tags[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"pass_id":       s.PassID,
		"tags":          tags,
	}
	if len(s.Diagnostics) > 0 {
		result["diagnostics"] = s.Diagnostics
	}
	return result
}

// RunWithGolden executes a scenario and compares the resolved tags against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the tags don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := PassSnapshot{
		ScenarioName: scenarioName,
		PassID:       result.PassID,
		Tags:         result.Tags,
		Diagnostics:  result.Diagnostics,
	}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
