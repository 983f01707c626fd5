package ir

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Tag kinds. titleTemplate and templateParams never reach rendered output:
// they are consumed during tags:resolve.
const (
	KindTitle          = "title"
	KindTitleTemplate  = "titleTemplate"
	KindTemplateParams = "templateParams"
	KindBase           = "base"
	KindMeta           = "meta"
	KindLink           = "link"
	KindScript         = "script"
	KindStyle          = "style"
	KindNoscript       = "noscript"
	KindHTMLAttrs      = "htmlAttrs"
	KindBodyAttrs      = "bodyAttrs"
)

// SingletonKinds lists kinds of which at most one tag survives a pass.
var SingletonKinds = []string{
	KindTitle, KindTitleTemplate, KindTemplateParams, KindBase, KindHTMLAttrs, KindBodyAttrs,
}

// ArrayKinds lists kinds contributed as lists of elements.
var ArrayKinds = []string{KindMeta, KindLink, KindScript, KindStyle, KindNoscript}

// IsSingleton reports whether kind deduplicates by kind alone.
func IsSingleton(kind string) bool {
	for _, k := range SingletonKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsArrayKind reports whether kind is contributed as a list.
func IsArrayKind(kind string) bool {
	for _, k := range ArrayKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CarriesContent reports whether a tag of this kind may have textContent or
// innerHTML in rendered output.
func CarriesContent(kind string) bool {
	switch kind {
	case KindTitle, KindTitleTemplate, KindScript, KindStyle, KindNoscript:
		return true
	default:
		return false
	}
}

// RenderContext identifies the render target of a resolution pass.
type RenderContext string

const (
	RenderServer RenderContext = "server"
	RenderClient RenderContext = "client"
)

// ParseRenderContext validates a render context name.
func ParseRenderContext(s string) (RenderContext, error) {
	switch RenderContext(s) {
	case RenderServer, RenderClient:
		return RenderContext(s), nil
	default:
		return "", fmt.Errorf("invalid render context %q: must be server or client", s)
	}
}

// Mode restricts which render target consumes an entry.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

// Allows reports whether an entry with this mode takes part in a pass for rc.
// The zero Mode behaves like ModeAll.
func (m Mode) Allows(rc RenderContext) bool {
	switch m {
	case ModeServer:
		return rc == RenderServer
	case ModeClient:
		return rc == RenderClient
	default:
		return true
	}
}

// ParseMode validates a mode name. The empty string means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeAll, nil
	case ModeAll, ModeServer, ModeClient:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be server, client or all", s)
	}
}

// TagPosition is where in the document a tag is rendered.
type TagPosition string

const (
	PositionHead      TagPosition = "head"
	PositionBodyOpen  TagPosition = "bodyOpen"
	PositionBodyClose TagPosition = "bodyClose"
)

// ParseTagPosition validates a tag position. The empty string means head.
func ParseTagPosition(s string) (TagPosition, error) {
	switch TagPosition(s) {
	case "":
		return PositionHead, nil
	case PositionHead, PositionBodyOpen, PositionBodyClose:
		return TagPosition(s), nil
	default:
		return "", fmt.Errorf("invalid tagPosition %q", s)
	}
}

// DuplicateStrategy controls what happens when a later tag collides with an
// earlier one of the same dedupe identity.
type DuplicateStrategy string

const (
	DuplicateReplace DuplicateStrategy = "replace"
	DuplicateMerge   DuplicateStrategy = "merge"
)

// ParseDuplicateStrategy validates a strategy name. The empty string means replace.
func ParseDuplicateStrategy(s string) (DuplicateStrategy, error) {
	switch DuplicateStrategy(s) {
	case "", DuplicateReplace:
		return DuplicateReplace, nil
	case DuplicateMerge:
		return DuplicateMerge, nil
	default:
		return "", fmt.Errorf("invalid tagDuplicateStrategy %q: must be replace or merge", s)
	}
}

// PriorityKind discriminates the forms a tagPriority can take.
type PriorityKind uint8

const (
	PriorityNone PriorityKind = iota
	PriorityNumber
	PriorityAlias
	PriorityBefore
	PriorityAfter
)

// Priority aliases.
const (
	AliasCritical = "critical"
	AliasHigh     = "high"
	AliasLow      = "low"
)

const (
	prefixBefore = "before:"
	prefixAfter  = "after:"
)

// Priority is a parsed tagPriority: an explicit number, an alias
// (critical/high/low) or a before:/after: reference to another tag.
type Priority struct {
	Kind   PriorityKind
	Number int
	Alias  string
	Ref    string
}

// NumberPriority returns an explicit numeric priority.
func NumberPriority(n int) Priority {
	return Priority{Kind: PriorityNumber, Number: n}
}

// IsZero reports whether no priority was given.
func (p Priority) IsZero() bool {
	return p.Kind == PriorityNone
}

// String renders the priority the way callers write it.
func (p Priority) String() string {
	switch p.Kind {
	case PriorityNumber:
		return strconv.Itoa(p.Number)
	case PriorityAlias:
		return p.Alias
	case PriorityBefore:
		return prefixBefore + p.Ref
	case PriorityAfter:
		return prefixAfter + p.Ref
	default:
		return ""
	}
}

// MarshalJSON emits numbers as JSON numbers and everything else as strings.
func (p Priority) MarshalJSON() ([]byte, error) {
	if p.Kind == PriorityNumber {
		return json.Marshal(p.Number)
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either form MarshalJSON produces.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = NumberPriority(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tagPriority: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority parses the string form of a tagPriority.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Priority{}, nil
	case s == AliasCritical || s == AliasHigh || s == AliasLow:
		return Priority{Kind: PriorityAlias, Alias: s}, nil
	case strings.HasPrefix(s, prefixBefore):
		ref := strings.TrimPrefix(s, prefixBefore)
		if ref == "" {
			return Priority{}, fmt.Errorf("tagPriority %q: missing reference", s)
		}
		return Priority{Kind: PriorityBefore, Ref: ref}, nil
	case strings.HasPrefix(s, prefixAfter):
		ref := strings.TrimPrefix(s, prefixAfter)
		if ref == "" {
			return Priority{}, fmt.Errorf("tagPriority %q: missing reference", s)
		}
		return Priority{Kind: PriorityAfter, Ref: ref}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Priority{}, fmt.Errorf("invalid tagPriority %q", s)
	}
	return NumberPriority(n), nil
}

// PriorityFromValue parses a tagPriority given as any resolved Value.
func PriorityFromValue(v Value) (Priority, error) {
	switch val := v.(type) {
	case nil, Null:
		return Priority{}, nil
	case Int:
		return NumberPriority(int(val)), nil
	case Float:
		return NumberPriority(int(val)), nil
	case String:
		return ParsePriority(string(val))
	default:
		return Priority{}, fmt.Errorf("invalid tagPriority of type %T", v)
	}
}

// Tag is one atomic renderable unit derived from an entry.
//
// Props hold primitive string values only: an attribute present with an empty
// value is a boolean attribute. Prop values are unescaped; renderers quote
// them. TextContent is escaped by renderers, InnerHTML is not; at most one of
// them is non-empty.
type Tag struct {
	Tag                   string            `json:"tag"`
	Props                 map[string]string `json:"props,omitempty"`
	TextContent           string            `json:"text_content,omitempty"`
	InnerHTML             string            `json:"inner_html,omitempty"`
	Key                   string            `json:"key,omitempty"`
	TagPriority           Priority          `json:"tag_priority,omitzero"`
	TagPosition           TagPosition       `json:"tag_position,omitempty"`
	DuplicateStrategy     DuplicateStrategy `json:"duplicate_strategy,omitempty"`
	ProcessTemplateParams bool              `json:"process_template_params,omitempty"`

	// Derived fields.
	EntryID     int64  `json:"entry_id"`
	Position    int64  `json:"position"`
	ContentHash string `json:"content_hash,omitempty"`
	DedupeKey   string `json:"dedupe_key,omitempty"`
}

// Clone returns a copy of the tag with its own props map.
func (t Tag) Clone() Tag {
	t.Props = maps.Clone(t.Props)
	return t
}

// Content returns whichever content payload the tag carries.
func (t Tag) Content() string {
	if t.InnerHTML != "" {
		return t.InnerHTML
	}
	return t.TextContent
}

// Prop returns a prop value and whether it is present.
func (t Tag) Prop(name string) (string, bool) {
	v, ok := t.Props[name]
	return v, ok
}

// SetProp sets a prop, allocating the props map if needed.
func (t *Tag) SetProp(name, value string) {
	if t.Props == nil {
		t.Props = make(map[string]string)
	}
	t.Props[name] = value
}

// CloneTags copies a tag list so the caller can mutate it freely.
func CloneTags(tags []Tag) []Tag {
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = t.Clone()
	}
	return out
}
