// Package surface composes the per-field renderer into hosting surfaces: an
// options page with tabs, a taxonomy edit table, a block inspector and
// product-variation rows. Each surface owns a value store and a validity
// aggregator and renders one field per top-level schema entry.
package surface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/goliatone/go-customfields/pkg/fields"
	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
	"github.com/goliatone/go-customfields/pkg/values"
)

// Option configures a surface.
type Option func(*config)

type config struct {
	renderer    *render.Renderer
	hooks       *hooks.Hooks
	store       values.Store
	initial     values.Bag
	errors      render.ErrorMapping
	logger      *slog.Logger
	tab         string
	action      string
	method      string
	submitLabel string
	hidden      []render.HiddenField
	slots       map[string]io.Writer
	theme       themeConfig
}

// WithRenderer sets the field renderer. Defaults to render.New with the
// surface's hooks and logger.
func WithRenderer(r *render.Renderer) Option {
	return func(c *config) {
		c.renderer = r
	}
}

// WithHooks attaches the filter bus used for wpifycf_definition and, through
// the default renderer, field resolution and layer suppression.
func WithHooks(h *hooks.Hooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithStore supplies a host-owned store. Without it the surface keeps its own
// in-memory store.
func WithStore(store values.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithValues seeds the internal store.
func WithValues(bag values.Bag) Option {
	return func(c *config) {
		c.initial = bag
	}
}

// WithErrors shows server-reported errors next to the fields.
func WithErrors(mapping render.ErrorMapping) Option {
	return func(c *config) {
		c.errors = mapping
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{logger: slog.Default(), method: "post"}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.renderer == nil {
		r, err := render.New(render.WithHooks(cfg.hooks), render.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("surface: %w", err)
		}
		cfg.renderer = r
	}
	return cfg, nil
}

// Root is the shared core of every surface.
type Root struct {
	def      schema.Definition
	renderer *render.Renderer
	store    values.Store
	agg      *validity.Aggregator
	errors   render.ErrorMapping
	logger   *slog.Logger
	theme    themeConfig
}

// NewRoot applies the wpifycf_definition filter, validates the definition and
// normalises the initial values.
func NewRoot(def schema.Definition, opts ...Option) (*Root, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newRoot(def, cfg)
}

func newRoot(def schema.Definition, cfg *config) (*Root, error) {
	def = hooks.Apply(cfg.hooks, hooks.Definition, def, def.Surface)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}

	r := &Root{
		def:      def,
		renderer: cfg.renderer,
		agg:      validity.NewAggregator(),
		errors:   cfg.errors,
		logger:   cfg.logger,
		theme:    cfg.theme,
	}
	if cfg.store != nil {
		r.store = cfg.store
		r.store.Replace(r.Normalize(r.store.Snapshot()))
	} else {
		r.store = values.NewMemory(r.Normalize(cfg.initial), values.WithLogger(cfg.logger))
	}
	return r, nil
}

// Definition returns the (filtered) definition.
func (r *Root) Definition() schema.Definition { return r.def }

// Fields returns the top-level fields.
func (r *Root) Fields() []schema.Field { return r.def.Fields }

// Renderer exposes the field renderer.
func (r *Root) Renderer() *render.Renderer { return r.renderer }

// Store exposes the value store.
func (r *Root) Store() values.Store { return r.store }

// Snapshot returns the current values.
func (r *Root) Snapshot() values.Bag { return r.store.Snapshot() }

// UpdateValue returns the setter of one top-level field.
func (r *Root) UpdateValue(id string) func(any) { return r.store.UpdateValue(id) }

// Replace normalises bag and swaps it in.
func (r *Root) Replace(bag values.Bag) { r.store.Replace(r.Normalize(bag)) }

// Subscribe runs fn after every value change.
func (r *Root) Subscribe(fn func(values.Bag)) func() { return r.store.Subscribe(fn) }

// Normalize coerces bag to the canonical shapes of the definition's types.
func (r *Root) Normalize(bag values.Bag) values.Bag {
	return fields.NormalizeBagWith(r.renderer.Registry(), r.def.Fields, bag)
}

// SetErrors replaces the server-reported errors.
func (r *Root) SetErrors(mapping render.ErrorMapping) { r.errors = mapping }

// FormErrors returns the server-reported messages not tied to a field.
func (r *Root) FormErrors() []string { return r.errors.Form }

// ServerErrors returns the server-reported errors.
func (r *Root) ServerErrors() render.ErrorMapping { return r.errors }

// Aggregator exposes the validity aggregator.
func (r *Root) Aggregator() *validity.Aggregator { return r.agg }

// Validate reports whether the last render pass left every visible field
// valid.
func (r *Root) Validate() bool { return r.agg.Validate() }

// Errors returns the messages of the last render pass by dotted path.
func (r *Root) Errors() map[string][]string { return r.agg.Errors() }

// Check recomputes validity for every condition-visible field, ignoring tabs,
// and reports whether the values can be saved.
func (r *Root) Check(ctx context.Context) (bool, error) {
	r.agg.Reset()
	bag := r.store.Snapshot()
	for _, field := range r.def.Fields {
		if _, err := r.renderer.Render(ctx, io.Discard, r.props(field, bag)); err != nil {
			return false, err
		}
	}
	return r.agg.Validate(), nil
}

// Decode turns a native form submission into a normalised bag.
func (r *Root) Decode(form url.Values) (values.Bag, error) {
	return DecodeSubmission(r.renderer.Registry(), r.def.Fields, form)
}

// Submit decodes form, stores the result and checks it.
func (r *Root) Submit(ctx context.Context, form url.Values) (bool, error) {
	bag, err := r.Decode(form)
	if err != nil {
		return false, err
	}
	r.store.Replace(bag)
	return r.Check(ctx)
}

// Render writes every field inline with the default layers.
func (r *Root) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	r.openSurface(&buf, "div", "root", nil)
	if err := r.renderFields(ctx, &buf, func(field schema.Field, p render.Props) render.Props { return p }); err != nil {
		return err
	}
	buf.WriteString(`</div>`)
	_, err := buf.WriteTo(w)
	return err
}

// RenderFragments renders the top-level fields selected by subset, each into
// its own markup keyed by field id. Validity of fields outside the subset is
// kept from the previous pass.
func (r *Root) RenderFragments(ctx context.Context, subset render.FieldSubset) (map[string]string, error) {
	return r.renderFragments(ctx, subset, func(field schema.Field, p render.Props) render.Props { return p })
}

func (r *Root) renderFragments(ctx context.Context, subset render.FieldSubset, adjust func(schema.Field, render.Props) render.Props) (map[string]string, error) {
	bag := r.store.Snapshot()
	selected := render.ApplySubset(r.def.Fields, subset)
	out := make(map[string]string, len(selected))
	for _, field := range selected {
		var buf bytes.Buffer
		if _, err := r.renderer.Render(ctx, &buf, adjust(field, r.props(field, bag))); err != nil {
			return nil, err
		}
		out[field.ID] = buf.String()
	}
	return out, nil
}

func (r *Root) props(field schema.Field, bag values.Bag) render.Props {
	return render.Props{
		Field:       field,
		Bag:         bag,
		OnChange:    r.store.UpdateValue(field.ID),
		SetValidity: r.agg.HandleValidityChange(field.ID),
		Errors:      r.errors.Field(field.ID),
		Options:     render.Options{IsRoot: true},
	}
}

// renderFields runs one render pass over a fresh snapshot. adjust tailors the
// props per surface.
func (r *Root) renderFields(ctx context.Context, w io.Writer, adjust func(schema.Field, render.Props) render.Props) error {
	r.agg.Reset()
	bag := r.store.Snapshot()
	for _, field := range r.def.Fields {
		if _, err := r.renderer.Render(ctx, w, adjust(field, r.props(field, bag))); err != nil {
			return err
		}
	}
	return nil
}

func (r *Root) writeFormErrors(buf *bytes.Buffer) {
	if len(r.errors.Form) == 0 {
		return
	}
	buf.WriteString(`<div class="cf-form-errors" role="alert">`)
	for _, message := range r.errors.Form {
		buf.WriteString(`<p>`)
		buf.WriteString(escape(r.renderer.T(message)))
		buf.WriteString(`</p>`)
	}
	buf.WriteString(`</div>`)
}
