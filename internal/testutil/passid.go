// Package testutil holds deterministic helpers shared by package tests.
package testutil

// ConstantPassID returns the same pass id every time.
//
// Unlike engine.FixedGenerator, which walks a list, every pass gets the same
// id, so golden output stays byte-identical however many passes a scenario
// runs.
//
// Thread-safety: stateless and safe for concurrent use.
type ConstantPassID struct {
	id string
}

// NewConstantPassID creates a generator returning id.
func NewConstantPassID(id string) ConstantPassID {
	return ConstantPassID{id: id}
}

// Generate returns the constant id.
func (g ConstantPassID) Generate() string {
	return g.id
}
