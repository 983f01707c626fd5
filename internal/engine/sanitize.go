package engine

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/headkit/internal/ir"
)

var (
	scriptClose = regexp.MustCompile(`(?i)</script`)
	styleClose  = regexp.MustCompile(`(?i)</style`)
)

// sanitize hardens one tag for output.
func sanitize(t *ir.Tag, rc ir.RenderContext, logger *slog.Logger) {
	if !ir.CarriesContent(t.Tag) {
		t.TextContent = ""
		t.InnerHTML = ""
	}

	for name, v := range t.Props {
		switch {
		case rc == ir.RenderServer && isEventHandler(name):
			delete(t.Props, name)
		case name == "href" || name == "src":
			if unsafeScheme(v) {
				logger.Debug("dropping unsafe URL", "tag", t.Tag, "attr", name, "entry_id", t.EntryID)
				delete(t.Props, name)
				continue
			}
			t.Props[name] = encodeURL(v)
		}
	}

	escapeContent(t)
}

// escapeContent keeps script and style bodies from closing their element.
func escapeContent(t *ir.Tag) {
	switch t.Tag {
	case ir.KindScript:
		if isJSONScript(*t) {
			t.InnerHTML = escapeJSONScript(t.InnerHTML)
			t.TextContent = escapeJSONScript(t.TextContent)
		} else {
			t.InnerHTML = scriptClose.ReplaceAllString(t.InnerHTML, `<\/script`)
			t.TextContent = scriptClose.ReplaceAllString(t.TextContent, `<\/script`)
		}
	case ir.KindStyle:
		t.InnerHTML = styleClose.ReplaceAllString(t.InnerHTML, `<\/style`)
		t.TextContent = styleClose.ReplaceAllString(t.TextContent, `<\/style`)
	}
}

func isEventHandler(name string) bool {
	return len(name) > 2 && strings.EqualFold(name[:2], "on")
}

func isJSONScript(t ir.Tag) bool {
	return strings.Contains(strings.ToLower(t.Props["type"]), "json")
}

// escapeJSONScript escapes < so a JSON payload can never close its script
// element or open a comment.
func escapeJSONScript(s string) string {
	return strings.ReplaceAll(s, "<", `\u003c`)
}

// unsafeScheme reports javascript: and vbscript: URLs, ignoring case, leading
// whitespace and embedded control characters the way browsers do.
func unsafeScheme(u string) bool {
	var b strings.Builder
	for _, r := range strings.TrimSpace(u) {
		if r <= ' ' {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= len("javascript:") {
			break
		}
	}
	scheme := strings.ToLower(b.String())
	return strings.HasPrefix(scheme, "javascript:") || strings.HasPrefix(scheme, "vbscript:")
}

const hexDigits = "0123456789ABCDEF"

// encodeURL percent-encodes the characters a URL attribute must not carry
// raw. Existing %XX escapes are kept, so encoding is idempotent.
func encodeURL(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '%':
			if i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
				b.WriteByte(c)
			} else {
				b.WriteString("%25")
			}
		case c <= ' ' || c >= 0x7f || strings.IndexByte(`"<>\^`+"`{|}", c) >= 0:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
