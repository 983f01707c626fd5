package hydrate

import (
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/headkit/internal/ir"
)

// StateTagID is the id of the script tag carrying the state blob.
const StateTagID = "headkit:state"

// State is the blob a server pass embeds for client initialisation.
type State struct {
	Hash digest.Digest     `json:"hash"`
	Data map[string]string `json:"data,omitempty"`
}

// Marshal encodes s as JSON. HTML-significant characters are escaped, so the
// result can be embedded in a script element verbatim.
func (s State) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// ParseState decodes a state blob and validates its hash.
func ParseState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("parse state: %w", err)
	}
	if s.Hash != "" {
		if err := s.Hash.Validate(); err != nil {
			return State{}, fmt.Errorf("parse state: hash: %w", err)
		}
	}
	return s, nil
}

// StateTag builds the script tag carrying s.
func StateTag(s State) (ir.Tag, error) {
	payload, err := s.Marshal()
	if err != nil {
		return ir.Tag{}, err
	}
	return ir.Tag{
		Tag: ir.KindScript,
		Props: map[string]string{
			"id":   StateTagID,
			"type": "application/json",
		},
		InnerHTML:   string(payload),
		TagPosition: ir.PositionBodyClose,
		DedupeKey:   ir.KindScript + ":id:" + StateTagID,
	}, nil
}

// IsStateTag reports whether t is the state tag.
func IsStateTag(t ir.Tag) bool {
	return t.Tag == ir.KindScript && t.Props["id"] == StateTagID
}

// FindState extracts the state blob from a tag list, as a client does from
// the server-rendered document.
func FindState(tags []ir.Tag) (State, bool, error) {
	for _, t := range tags {
		if !IsStateTag(t) {
			continue
		}
		s, err := ParseState([]byte(t.InnerHTML))
		if err != nil {
			return State{}, true, err
		}
		return s, true, nil
	}
	return State{}, false, nil
}
