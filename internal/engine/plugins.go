package engine

import (
	"context"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/roach88/headkit/internal/hooks"
	"github.com/roach88/headkit/internal/hydrate"
	"github.com/roach88/headkit/internal/ir"
	"github.com/roach88/headkit/internal/template"
)

// Built-in plugin names.
const (
	PluginTemplate = "headkit:template"
	PluginState    = "headkit:state"
)

// templatePlugin expands the title template and substitutes template params
// into the title, meta content and tags flagged processTemplateParams.
func (h *Head) templatePlugin() hooks.Plugin {
	return hooks.Plugin{
		Name: PluginTemplate,
		Hooks: hooks.Set{
			TagsResolve: func(_ context.Context, c *hooks.TagsContext) error {
				h.applyTemplates(c.Tags)
				return nil
			},
		},
	}
}

func (h *Head) applyTemplates(tags []ir.Tag) {
	params := ir.Object{}
	var (
		tmpl    string
		hasTmpl bool
		title   *ir.Tag
	)
	for i := range tags {
		switch tags[i].Tag {
		case ir.KindTemplateParams:
			params = paramsObject(tags[i].Props)
		case ir.KindTitleTemplate:
			tmpl, hasTmpl = tags[i].TextContent, true
		case ir.KindTitle:
			title = &tags[i]
		}
	}

	opts := template.Options{Separator: h.separator}
	if title != nil {
		params[template.ParamPageTitle] = ir.String(title.TextContent)
		if hasTmpl {
			title.TextContent = h.subst.ExpandTitle(tmpl, title.TextContent, params, opts)
		} else {
			title.TextContent = h.subst.Substitute(title.TextContent, params, opts)
		}
	}

	for i := range tags {
		t := &tags[i]
		if t.Tag == ir.KindMeta {
			if content, ok := t.Props["content"]; ok {
				t.Props["content"] = h.subst.Substitute(content, params, opts)
			}
		}
		if !t.ProcessTemplateParams {
			continue
		}
		contentOpts := opts
		if t.Tag == ir.KindScript && isJSONScript(*t) {
			contentOpts.Escape = template.EscapeJSON
		}
		t.TextContent = h.subst.Substitute(t.TextContent, params, contentOpts)
		t.InnerHTML = h.subst.Substitute(t.InnerHTML, params, contentOpts)
		escapeContent(t)
	}
}

// paramsObject rebuilds nested params from dot-path props.
func paramsObject(props map[string]string) ir.Object {
	out := ir.Object{}
	for k, v := range props {
		parts := strings.Split(k, ".")
		cur := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(ir.Object)
			if !ok {
				next = ir.Object{}
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = ir.String(v)
	}
	return out
}

// statePlugin appends the hydration state tag to server passes when the
// state payload is enabled.
func (h *Head) statePlugin() hooks.Plugin {
	return hooks.Plugin{
		Name: PluginState,
		Hooks: hooks.Set{
			TagsAfterResolve: func(_ context.Context, c *hooks.TagsContext) error {
				if !h.statePayload || c.Render != ir.RenderServer {
					return nil
				}
				return h.injectState(c)
			},
		},
	}
}

func (h *Head) injectState(c *hooks.TagsContext) error {
	kept := c.Tags[:0]
	for _, t := range c.Tags {
		if !hydrate.IsStateTag(t) {
			kept = append(kept, t)
		}
	}
	c.Tags = kept

	hash, err := hydrate.PassHash(stripInternal(c.Tags))
	if err != nil {
		return err
	}
	s := h.State()
	s.Hash = hash

	tag, err := hydrate.StateTag(s)
	if err != nil {
		return err
	}
	tag.ContentHash = ir.MustTagContentHash(tag)
	if n := len(c.Tags); n > 0 {
		tag.Position = c.Tags[n-1].Position + 1
	}
	c.Tags = append(c.Tags, tag)
	return nil
}

// refreshState rewrites the state tag of a frozen list when plugins running
// after the state plugin changed the list it summarises.
func (h *Head) refreshState(tags []ir.Tag, hash digest.Digest) {
	for i, t := range tags {
		if !hydrate.IsStateTag(t) {
			continue
		}
		s, err := hydrate.ParseState([]byte(t.InnerHTML))
		if err == nil && s.Hash == hash {
			return
		}
		if err != nil {
			s = h.State()
		}
		s.Hash = hash
		fresh, err := hydrate.StateTag(s)
		if err != nil {
			h.logger.Warn("state tag refresh failed", "error", err)
			return
		}
		fresh.Position = t.Position
		fresh.ContentHash = ir.MustTagContentHash(fresh)
		tags[i] = fresh
		return
	}
}
