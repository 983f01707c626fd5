package normalize

import (
	"log/slog"

	"github.com/roach88/headkit/internal/entry"
	"github.com/roach88/headkit/internal/ir"
)

// Entry input fields.
const (
	FieldTitle          = ir.KindTitle
	FieldTitleTemplate  = ir.KindTitleTemplate
	FieldTemplateParams = ir.KindTemplateParams
	FieldBase           = ir.KindBase
	FieldMeta           = ir.KindMeta
	FieldLink           = ir.KindLink
	FieldScript         = ir.KindScript
	FieldStyle          = ir.KindStyle
	FieldNoscript       = ir.KindNoscript
	FieldHTMLAttrs      = ir.KindHTMLAttrs
	FieldBodyAttrs      = ir.KindBodyAttrs
)

// fieldOrder fixes the order in which an entry's fields are expanded. Field
// indices, and so tag positions, follow it.
var fieldOrder = []string{
	FieldTitle,
	FieldTitleTemplate,
	FieldTemplateParams,
	FieldBase,
	FieldMeta,
	FieldLink,
	FieldStyle,
	FieldScript,
	FieldNoscript,
	FieldHTMLAttrs,
	FieldBodyAttrs,
}

// maxFieldIndex bounds the candidates one entry can produce; positions pack
// the field index into the low 16 bits.
const maxFieldIndex = 1<<16 - 1

// Candidate is an unnormalised tag: the raw element of one entry field.
type Candidate struct {
	Kind string

	// Props holds the element's attributes, special keys included.
	Props ir.Object

	EntryID    int64
	FieldIndex int

	// Defaults carries the owning entry's tag defaults.
	Defaults entry.Options
}

// Position packs (EntryID, FieldIndex) into a single sortable value.
func (c Candidate) Position() int64 {
	return Position(c.EntryID, c.FieldIndex)
}

// Position packs an entry id and a field index.
func Position(entryID int64, fieldIndex int) int64 {
	return entryID<<16 | int64(fieldIndex)
}

// Extract expands an entry's resolved input into candidates, in field order.
// Unknown fields are ignored.
func Extract(e *entry.Entry, logger *slog.Logger) ([]Candidate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	input := e.Resolved
	if input == nil {
		return nil, &NormalizationError{
			Code:    ErrCodeInvalidField,
			EntryID: e.ID,
			Message: "entry has not been resolved",
		}
	}

	known := make(map[string]bool, len(fieldOrder))
	var out []Candidate
	add := func(kind string, props ir.Object) error {
		if len(out) > maxFieldIndex {
			return invalidField(e.ID, kind, "too many tags (max %d)", maxFieldIndex+1)
		}
		out = append(out, Candidate{
			Kind:       kind,
			Props:      props,
			EntryID:    e.ID,
			FieldIndex: len(out),
			Defaults:   e.Options,
		})
		return nil
	}

	for _, field := range fieldOrder {
		known[field] = true
		v, ok := input[field]
		if !ok {
			continue
		}
		if err := extractField(e.ID, field, v, add); err != nil {
			return nil, err
		}
	}

	for _, k := range input.SortedKeys() {
		if !known[k] {
			logger.Debug("ignoring unknown entry field", "entry_id", e.ID, "field", k)
		}
	}
	return out, nil
}

func extractField(entryID int64, field string, v ir.Value, add func(string, ir.Object) error) error {
	switch field {
	case FieldTitle, FieldTitleTemplate:
		return extractTitle(entryID, field, v, add)

	case FieldTemplateParams, FieldBase, FieldHTMLAttrs, FieldBodyAttrs:
		switch val := v.(type) {
		case ir.Null:
			return nil
		case ir.Object:
			return add(field, val)
		default:
			return invalidField(entryID, field, "expected object, got %T", v)
		}

	default:
		var elems ir.Array
		switch val := v.(type) {
		case ir.Null:
			return nil
		case ir.Array:
			elems = val
		default:
			elems = ir.Array{val}
		}
		for i, elem := range elems {
			props, err := elementProps(field, elem)
			if err != nil {
				return invalidField(entryID, field, "element %d: %v", i, err)
			}
			if props == nil {
				continue
			}
			if err := add(field, props); err != nil {
				return err
			}
		}
		return nil
	}
}

// extractTitle handles the scalar shorthand fields. A null titleTemplate is
// kept as an empty template, clearing any earlier one.
func extractTitle(entryID int64, field string, v ir.Value, add func(string, ir.Object) error) error {
	switch val := v.(type) {
	case ir.Null:
		if field == FieldTitleTemplate {
			return add(field, ir.Obj(ir.O(KeyTextContent, ir.String(""))))
		}
		return nil
	case ir.Object:
		return add(field, val)
	}
	s, ok := ir.Scalar(v)
	if !ok {
		return invalidField(entryID, field, "expected string, got %T", v)
	}
	return add(field, ir.Obj(ir.O(KeyTextContent, ir.String(s))))
}

// elementProps converts one array element. A bare string is the body of a
// script, style or noscript tag.
func elementProps(kind string, elem ir.Value) (ir.Object, error) {
	switch val := elem.(type) {
	case ir.Null:
		return nil, nil
	case ir.Object:
		return val, nil
	case ir.String:
		switch kind {
		case FieldScript, FieldStyle, FieldNoscript:
			return ir.Obj(ir.O(KeyInnerHTML, val)), nil
		}
	}
	return nil, errUnexpected(elem)
}
