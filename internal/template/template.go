// Package template substitutes %token placeholders in tag content.
//
// A token is %name or a dot path %a.b.c resolved against a parameter object.
// Input is URI-decoded before substitution.
// Tokens missing from the parameters are left as literal text. The special
// %separator token is cleaned up last: it is dropped when leading or trailing,
// collapsed when repeated, then replaced with the separator parameter.
package template

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/roach88/headkit/internal/ir"
)

// Escape selects how substituted values are escaped for their destination.
type Escape uint8

const (
	// EscapeText substitutes values verbatim (title text, textContent).
	EscapeText Escape = iota
	// EscapeAttribute HTML-quotes double quotes (meta content).
	EscapeAttribute
	// EscapeJSON backslash-escapes double quotes (JSON script bodies).
	EscapeJSON
)

// DefaultSeparator is used when neither the params nor the options name one.
const DefaultSeparator = "|"

// Param names with special meaning.
const (
	ParamSeparator = "separator"
	ParamPageTitle = "pageTitle"
)

const separatorToken = "%" + ParamSeparator

var (
	tokenPattern      = regexp.MustCompile(`%\w+(?:\.\w+)*`)
	repeatedSeparator = regexp.MustCompile(`%separator(?:\s*%separator)+`)
	titleToken        = regexp.MustCompile(`%s\b`)
)

// Options configure one substitution.
type Options struct {
	Escape Escape

	// Separator is the fallback when params carry no "separator" entry.
	Separator string
}

// Substitutor performs substitutions, caching the token scan of every input
// string it sees.
//
// Thread-safety: safe for concurrent use.
type Substitutor struct {
	scans *expirable.LRU[string, map[string]bool]
}

// NewSubstitutor creates a substitutor whose scan cache holds up to size
// strings for ttl. A zero size or ttl means unbounded.
func NewSubstitutor(size int, ttl time.Duration) *Substitutor {
	return &Substitutor{scans: expirable.NewLRU[string, map[string]bool](size, nil, ttl)}
}

var defaultSubstitutor = NewSubstitutor(1024, 10*time.Minute)

// Substitute runs s through the package-level substitutor.
func Substitute(s string, params ir.Object, opts Options) string {
	return defaultSubstitutor.Substitute(s, params, opts)
}

// Substitute URI-decodes s, then replaces the tokens found in params.
func (sub *Substitutor) Substitute(s string, params ir.Object, opts Options) string {
	if !strings.Contains(s, "%") {
		return s
	}

	s = decode(s, params)
	tokens := sub.scan(s)
	if len(tokens) == 0 {
		return s
	}
	hasSeparator := strings.Contains(s, separatorToken)

	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == separatorToken || !tokens[tok] {
			return tok
		}
		val, ok := lookup(params, tok[1:])
		if !ok {
			return tok
		}
		return escape(val, opts.Escape)
	})
	out = strings.TrimSpace(out)

	if hasSeparator {
		out = strings.TrimSuffix(out, separatorToken)
		out = strings.TrimPrefix(out, separatorToken)
		out = repeatedSeparator.ReplaceAllString(out, separatorToken)
		out = strings.ReplaceAll(out, separatorToken, separator(params, opts))
		out = strings.TrimSpace(out)
	}
	return out
}

// decode percent-decodes the %XX escapes of s. An escape that begins a token
// found in params (%description, %fb.id) is left for substitution. When the
// decoded bytes are not valid UTF-8, s is returned unchanged.
func decode(s string, params ir.Object) string {
	out := tokenPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == separatorToken || len(tok) < 3 || !isHex(tok[1]) || !isHex(tok[2]) {
			return tok
		}
		if _, ok := lookup(params, tok[1:]); ok {
			return tok
		}
		b, err := url.PathUnescape(tok[:3])
		if err != nil {
			return tok
		}
		return b + tok[3:]
	})
	if !utf8.ValidString(out) {
		return s
	}
	return out
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

// scan returns the distinct tokens of an already decoded s.
func (sub *Substitutor) scan(s string) map[string]bool {
	if tokens, ok := sub.scans.Get(s); ok {
		return tokens
	}

	tokens := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(s, -1) {
		tokens[tok] = true
	}
	sub.scans.Add(s, tokens)
	return tokens
}

// lookup resolves a token name against params. %s is an alias of %pageTitle.
// A null value substitutes as the empty string.
func lookup(params ir.Object, name string) (string, bool) {
	if name == "s" {
		name = ParamPageTitle
	}

	var cur ir.Value = params
	for _, part := range strings.Split(name, ".") {
		obj, ok := cur.(ir.Object)
		if !ok {
			return "", false
		}
		if cur, ok = obj[part]; !ok {
			return "", false
		}
	}

	if _, isNull := cur.(ir.Null); isNull {
		return "", true
	}
	return ir.Scalar(cur)
}

func separator(params ir.Object, opts Options) string {
	if v, ok := params[ParamSeparator]; ok {
		if s, ok := ir.Scalar(v); ok {
			return s
		}
	}
	if opts.Separator != "" {
		return opts.Separator
	}
	return DefaultSeparator
}

func escape(s string, mode Escape) string {
	switch mode {
	case EscapeAttribute:
		return strings.ReplaceAll(s, `"`, "&quot;")
	case EscapeJSON:
		return strings.ReplaceAll(s, `"`, `\"`)
	default:
		return s
	}
}

// ExpandTitle applies a title template: each %s is replaced with title, then the
// result is run through Substitute. An empty template yields the title.
func (sub *Substitutor) ExpandTitle(tmpl, title string, params ir.Object, opts Options) string {
	if tmpl == "" {
		return sub.Substitute(title, params, opts)
	}
	expanded := titleToken.ReplaceAllLiteralString(tmpl, title)
	return sub.Substitute(expanded, params, opts)
}
