package surface

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
)

// WithTab sets the tab requested by the URL ("#tab=seo", "?tab=seo" or a
// bare key). Unknown keys fall back to the first tab.
func WithTab(raw string) Option {
	return func(c *config) {
		c.tab = raw
	}
}

// WithAction sets the form method and action of a page surface.
func WithAction(method, action string) Option {
	return func(c *config) {
		if method != "" {
			c.method = method
		}
		c.action = action
	}
}

// WithHiddenFields adds hidden inputs, such as a CSRF token, to the page form.
func WithHiddenFields(hidden ...render.HiddenField) Option {
	return func(c *config) {
		c.hidden = append(c.hidden, hidden...)
	}
}

// WithSubmitLabel replaces the default "Save" button label.
func WithSubmitLabel(label string) Option {
	return func(c *config) {
		c.submitLabel = label
	}
}

// Page is the options-page surface: a native form, optionally split into
// tabs, whose submit button is disabled while any shown field is invalid.
type Page struct {
	*Root
	tabs        *Tabs
	action      string
	method      string
	submitLabel string
	hidden      []render.HiddenField
}

// NewPage builds an options page.
func NewPage(def schema.Definition, opts ...Option) (*Page, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	root, err := newRoot(def, cfg)
	if err != nil {
		return nil, err
	}
	return &Page{
		Root:        root,
		tabs:        NewTabs(root.def.TabKeys(), TabFromURL(cfg.tab)),
		action:      cfg.action,
		method:      cfg.method,
		submitLabel: cfg.submitLabel,
		hidden:      cfg.hidden,
	}, nil
}

// Tabs exposes the tab state machine.
func (p *Page) Tabs() *Tabs { return p.tabs }

// Render writes the page form. Fields on other tabs post only their hidden
// mirror, so their stored values survive a save.
func (p *Page) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	p.openSurface(&buf, "form", "page", [][2]string{
		{"method", p.method},
		{"action", p.action},
	})
	p.writeTabs(&buf)

	hidden := render.MergeHiddenFields(nil, append([]render.HiddenField{render.DefinitionID(p.def.ID)}, p.hidden...)...)
	if err := render.WriteHiddenFields(&buf, render.SortedHiddenFields(hidden)); err != nil {
		return err
	}
	p.writeFormErrors(&buf)

	active := p.tabs.Active()
	buf.WriteString(`<div class="cf-surface__fields">`)
	err := p.renderFields(ctx, &buf, func(_ schema.Field, props render.Props) render.Props {
		props.ActiveTab = active
		return props
	})
	if err != nil {
		return err
	}
	buf.WriteString(`</div>`)

	label := p.submitLabel
	if label == "" {
		label = "Save"
	}
	buf.WriteString(`<p class="submit"><button type="submit" class="button button-primary"`)
	if !p.Validate() {
		buf.WriteString(` disabled`)
	}
	buf.WriteString(`>`)
	buf.WriteString(escape(p.renderer.T(label)))
	buf.WriteString(`</button></p></form>`)

	_, err = buf.WriteTo(w)
	return err
}

func (p *Page) writeTabs(buf *bytes.Buffer) {
	if len(p.def.Tabs) == 0 {
		return
	}
	active := p.tabs.Active()
	buf.WriteString(`<nav class="nav-tab-wrapper cf-tabs" role="tablist">`)
	for _, tab := range p.def.Tabs {
		label := tab.Label
		if label == "" {
			label = tab.ID
		}
		selected := tab.ID == active
		buf.WriteString(`<a class="nav-tab`)
		if selected {
			buf.WriteString(` nav-tab-active`)
		}
		buf.WriteString(`" role="tab" data-tab="`)
		buf.WriteString(escape(tab.ID))
		buf.WriteString(`" href="#`)
		buf.WriteString(TabParam)
		buf.WriteString(`=`)
		buf.WriteString(escape(tab.ID))
		if selected {
			buf.WriteString(`" aria-selected="true">`)
		} else {
			buf.WriteString(`" aria-selected="false">`)
		}
		buf.WriteString(escape(p.renderer.T(label)))
		buf.WriteString(`</a>`)
	}
	buf.WriteString(`</nav>`)
}
