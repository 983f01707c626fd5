package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/headkit/internal/engine"
	"github.com/roach88/headkit/internal/ir"
)

// AssertionContext carries what assertions need beyond the result itself.
type AssertionContext struct {
	Ctx    context.Context
	Head   *engine.Head
	Render ir.RenderContext
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Tags     []ir.Tag // Full tag list for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nResolved tags:\n")
	for i, t := range e.Tags {
		fmt.Fprintf(&buf, "  [%d] %s %v", i+1, t.DedupeKey, t.Props)
		if c := t.Content(); c != "" {
			fmt.Fprintf(&buf, " %q", c)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTitle:
		return assertTitle(result.Tags, a)
	case AssertTagPresent:
		return assertTagPresent(result.Tags, a)
	case AssertTagAbsent:
		return assertTagAbsent(result.Tags, a)
	case AssertTagCount:
		return assertTagCount(result.Tags, a)
	case AssertTagOrder:
		return assertTagOrder(result.Tags, a)
	case AssertStableHash:
		return assertStableHash(result, actx)
	case AssertNoDiagnostics:
		if len(result.Diagnostics) > 0 {
			return &AssertionError{
				Type:     AssertNoDiagnostics,
				Expected: "no diagnostics",
				Actual:   strings.Join(result.Diagnostics, "; "),
				Tags:     result.Tags,
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTitle(tags []ir.Tag, a Assertion) error {
	for _, t := range tags {
		if t.Tag == ir.KindTitle {
			if t.TextContent == a.Expect {
				return nil
			}
			return &AssertionError{
				Type:     AssertTitle,
				Expected: fmt.Sprintf("%q", a.Expect),
				Actual:   fmt.Sprintf("%q", t.TextContent),
				Tags:     tags,
			}
		}
	}
	return &AssertionError{
		Type:     AssertTitle,
		Expected: fmt.Sprintf("%q", a.Expect),
		Actual:   "no title tag",
		Tags:     tags,
	}
}

// matchTag reports whether t is of kind a.Kind with a.Props as a subset of
// its props and, when a.Content is set, exactly that content.
func matchTag(t ir.Tag, a Assertion) bool {
	if t.Tag != a.Kind {
		return false
	}
	for k, want := range a.Props {
		got, ok := t.Props[k]
		if !ok || got != want {
			return false
		}
	}
	return a.Content == nil || t.Content() == *a.Content
}

func describe(a Assertion) string {
	s := fmt.Sprintf("%s %v", a.Kind, a.Props)
	if a.Content != nil {
		s += fmt.Sprintf(" with content %q", *a.Content)
	}
	return s
}

func assertTagPresent(tags []ir.Tag, a Assertion) error {
	for _, t := range tags {
		if matchTag(t, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTagPresent,
		Expected: describe(a),
		Actual:   "not found",
		Tags:     tags,
	}
}

func assertTagAbsent(tags []ir.Tag, a Assertion) error {
	for _, t := range tags {
		if matchTag(t, a) {
			return &AssertionError{
				Type:     AssertTagAbsent,
				Expected: "no " + describe(a),
				Actual:   "found " + t.DedupeKey,
				Tags:     tags,
			}
		}
	}
	return nil
}

func assertTagCount(tags []ir.Tag, a Assertion) error {
	n := 0
	for _, t := range tags {
		if t.Tag == a.Kind {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTagCount,
		Expected: fmt.Sprintf("%d %s tags", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d", n),
		Tags:     tags,
	}
}

// assertTagOrder checks that the keys appear in the given relative order.
// Other tags may sit between them.
func assertTagOrder(tags []ir.Tag, a Assertion) error {
	positions := make(map[string]int, len(tags))
	for i, t := range tags {
		if _, seen := positions[t.DedupeKey]; !seen {
			positions[t.DedupeKey] = i
		}
	}

	for _, key := range a.Keys {
		if _, ok := positions[key]; !ok {
			return &AssertionError{
				Type:     AssertTagOrder,
				Expected: fmt.Sprintf("all keys present: %v", a.Keys),
				Actual:   "missing key: " + key,
				Tags:     tags,
			}
		}
	}
	for i := 1; i < len(a.Keys); i++ {
		prev, cur := a.Keys[i-1], a.Keys[i]
		if positions[prev] > positions[cur] {
			return &AssertionError{
				Type:     AssertTagOrder,
				Expected: fmt.Sprintf("%s before %s", prev, cur),
				Actual:   fmt.Sprintf("%s at %d, %s at %d", prev, positions[prev], cur, positions[cur]),
				Tags:     tags,
			}
		}
	}
	return nil
}

func assertStableHash(result *Result, actx *AssertionContext) error {
	if actx == nil || actx.Head == nil {
		return fmt.Errorf("stable_hash needs a head")
	}
	ctx := actx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	again, err := actx.Head.Resolve(ctx, actx.Render)
	if err != nil {
		return fmt.Errorf("stable_hash: re-resolve: %w", err)
	}
	if again.Hash.String() != result.Hash {
		return &AssertionError{
			Type:     AssertStableHash,
			Expected: result.Hash,
			Actual:   again.Hash.String(),
			Tags:     again.Tags,
		}
	}
	if again.ShouldRender {
		return &AssertionError{
			Type:     AssertStableHash,
			Expected: "second pass reports nothing to render",
			Actual:   "ShouldRender = true",
			Tags:     again.Tags,
		}
	}
	return nil
}
