package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/headkit/internal/ir"
)

// DefaultPassID is the pass id used when a scenario names none.
const DefaultPassID = "test-pass"

// Scenario defines an end-to-end head scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Render is the render context of the resolved pass. Default: server.
	Render string `yaml:"render,omitempty"`

	// StatePayload enables the hydration state tag on server passes.
	StatePayload bool `yaml:"state_payload,omitempty"`

	// Route, when set, round-trips the pass through an in-memory snapshot
	// store under this key before assertions run.
	Route string `yaml:"route,omitempty"`

	// PassID fixes the pass id. Default: DefaultPassID.
	PassID string `yaml:"pass_id,omitempty"`

	// Documents are head documents pushed before Entries, in order.
	// Relative paths resolve against the scenario file.
	Documents []string `yaml:"documents,omitempty"`

	// Entries are inline entries pushed after Documents.
	Entries []EntryStep `yaml:"entries,omitempty"`

	// Steps mutate named entries after every push.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the resolved pass.
	Assertions []Assertion `yaml:"assertions"`
}

// EntryStep is one inline entry.
type EntryStep struct {
	// Name labels the entry for steps. Optional.
	Name string `yaml:"name,omitempty"`

	// Input is the entry payload.
	Input map[string]any `yaml:"input"`

	Mode        string `yaml:"mode,omitempty"`
	TagPriority any    `yaml:"tag_priority,omitempty"`
	TagPosition string `yaml:"tag_position,omitempty"`
}

// Step patches or disposes a named entry. Exactly one of Patch and Dispose
// is set.
type Step struct {
	Patch   string         `yaml:"patch,omitempty"`
	Input   map[string]any `yaml:"input,omitempty"`
	Dispose string         `yaml:"dispose,omitempty"`
}

// Assertion validates the resolved pass.
type Assertion struct {
	// Type specifies the assertion type (see package docs).
	Type string `yaml:"type"`

	// Kind is the tag kind (tag_present, tag_absent, tag_count).
	Kind string `yaml:"kind,omitempty"`

	// Props is a subset match on the tag's props (tag_present, tag_absent).
	Props map[string]string `yaml:"props,omitempty"`

	// Content, when non-nil, must equal the tag's content (tag_present).
	Content *string `yaml:"content,omitempty"`

	// Expect is the expected title (title).
	Expect string `yaml:"expect,omitempty"`

	// Count is the expected number of tags (tag_count).
	Count int `yaml:"count,omitempty"`

	// Keys are dedupe keys in expected relative order (tag_order).
	Keys []string `yaml:"keys,omitempty"`
}

// Assertion type constants.
const (
	AssertTitle         = "title"
	AssertTagPresent    = "tag_present"
	AssertTagAbsent     = "tag_absent"
	AssertTagCount      = "tag_count"
	AssertTagOrder      = "tag_order"
	AssertStableHash    = "stable_hash"
	AssertNoDiagnostics = "no_diagnostics"
)

// LoadScenario reads and parses a scenario YAML file. Document paths are
// resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, doc := range scenario.Documents {
		if !filepath.IsAbs(doc) {
			scenario.Documents[i] = filepath.Join(base, doc)
		}
	}
	for i, doc := range scenario.Documents {
		if _, err := os.Stat(doc); err != nil {
			return nil, fmt.Errorf("invalid scenario: documents[%d]: %w", i, err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Render != "" {
		if _, err := ir.ParseRenderContext(s.Render); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	if len(s.Documents) == 0 && len(s.Entries) == 0 {
		return fmt.Errorf("documents or entries are required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, e := range s.Entries {
		if e.Input == nil {
			return fmt.Errorf("entries[%d]: input is required (use empty map if no fields)", i)
		}
		if e.Name == "" {
			continue
		}
		if names[e.Name] {
			return fmt.Errorf("entries[%d]: duplicate name %q", i, e.Name)
		}
		names[e.Name] = true
	}

	for i, step := range s.Steps {
		switch {
		case step.Patch != "" && step.Dispose != "":
			return fmt.Errorf("steps[%d]: patch and dispose are exclusive", i)
		case step.Patch != "":
			if !names[step.Patch] {
				return fmt.Errorf("steps[%d]: unknown entry %q", i, step.Patch)
			}
			if step.Input == nil {
				return fmt.Errorf("steps[%d]: input is required for patch", i)
			}
		case step.Dispose != "":
			if !names[step.Dispose] {
				return fmt.Errorf("steps[%d]: unknown entry %q", i, step.Dispose)
			}
		default:
			return fmt.Errorf("steps[%d]: patch or dispose is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTitle, AssertStableHash, AssertNoDiagnostics:
	case AssertTagPresent, AssertTagAbsent:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
	case AssertTagCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for tag_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for tag_count", index)
		}
	case AssertTagOrder:
		if len(a.Keys) < 2 {
			return fmt.Errorf("assertions[%d]: at least two keys are required for tag_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
