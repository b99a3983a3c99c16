// Package render turns one field schema plus its value into markup: it
// resolves the control, decides visibility, computes validity, emits the
// hidden submission mirror and wraps the control according to the render
// options of the hosting surface.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-customfields/pkg/conditions"
	"github.com/goliatone/go-customfields/pkg/fields"
	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/render/template"
	"github.com/goliatone/go-customfields/pkg/render/template/pongo"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
	"github.com/goliatone/go-customfields/pkg/values"
)

// Localised strings emitted by the renderer.
const (
	MsgRenderFailed = "This field failed to render."
)

var (
	// ErrConditions wraps condition evaluation failures. They indicate an
	// authoring bug and abort the render instead of degrading in place.
	ErrConditions = errors.New("render: invalid field conditions")
	// ErrControlPanic wraps a panic recovered from a control renderer.
	ErrControlPanic = errors.New("render: control panicked")
)

// DefaultFetchTimeout bounds remote option lookups made while rendering.
const DefaultFetchTimeout = 5 * time.Second

// Option configures a Renderer.
type Option func(*Renderer)

// WithRegistry sets the field registry. Defaults to the built-in types.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Renderer) {
		r.registry = reg
	}
}

// WithHooks attaches the filter bus consulted for the wcf_field_without_*
// suppressions. The default registry also resolves types through it.
func WithHooks(h *hooks.Hooks) Option {
	return func(r *Renderer) {
		r.hooks = h
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(e *conditions.Evaluator) Option {
	return func(r *Renderer) {
		r.evaluator = e
	}
}

// WithTemplates sets the engine used by control templates.
func WithTemplates(engine template.TemplateRenderer) Option {
	return func(r *Renderer) {
		r.templates = engine
	}
}

// WithTranslator localises renderer and control strings.
func WithTranslator(t Translator, locale string) Option {
	return func(r *Renderer) {
		r.translator = t
		r.locale = locale
	}
}

// WithMissingTranslationHandler customises the text used when a key has no
// translation.
func WithMissingTranslationHandler(fn MissingTranslationHandler) Option {
	return func(r *Renderer) {
		r.onMissing = fn
	}
}

// WithSources lets choice controls with an options_source load their options
// while rendering.
func WithSources(sources *options.Sources) Option {
	return func(r *Renderer) {
		r.sources = sources
	}
}

// WithFetchTimeout bounds each remote option lookup.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(r *Renderer) {
		if timeout > 0 {
			r.fetchTimeout = timeout
		}
	}
}

// WithSanitizer replaces the policy applied to titles and descriptions.
func WithSanitizer(fn func(string) string) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.sanitize = fn
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer is the per-field orchestrator. It is safe for concurrent use;
// every call works on its own props and the snapshot they carry.
type Renderer struct {
	registry     *registry.Registry
	hooks        *hooks.Hooks
	evaluator    *conditions.Evaluator
	templates    template.TemplateRenderer
	translator   Translator
	onMissing    MissingTranslationHandler
	locale       string
	sources      *options.Sources
	fetchTimeout time.Duration
	sanitize     func(string) string
	logger       *slog.Logger
}

// New constructs a Renderer.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		fetchTimeout: DefaultFetchTimeout,
		sanitize:     fields.Sanitize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.registry == nil {
		r.registry = fields.NewRegistry(registry.WithHooks(r.hooks), registry.WithLogger(r.logger))
	}
	if r.evaluator == nil {
		r.evaluator = conditions.New(conditions.WithLogger(r.logger))
	}
	if r.templates == nil {
		engine, err := pongo.New(pongo.WithFS(fields.Templates()))
		if err != nil {
			return nil, fmt.Errorf("render: default templates: %w", err)
		}
		r.templates = engine
	}
	if err := InstallTemplateI18n(r.templates, r.translator, r.locale, TemplateI18nConfig{OnMissing: r.onMissing}); err != nil {
		return nil, err
	}
	return r, nil
}

// Registry exposes the field registry.
func (r *Renderer) Registry() *registry.Registry { return r.registry }

// Hooks exposes the filter bus, which may be nil.
func (r *Renderer) Hooks() *hooks.Hooks { return r.hooks }

// Evaluator exposes the condition evaluator.
func (r *Renderer) Evaluator() *conditions.Evaluator { return r.evaluator }

// Logger exposes the renderer's logger.
func (r *Renderer) Logger() *slog.Logger { return r.logger }

// Locale returns the active locale.
func (r *Renderer) Locale() string { return r.locale }

// WithLocale returns a shallow copy rendering in locale.
func (r *Renderer) WithLocale(locale string) *Renderer {
	clone := *r
	clone.locale = locale
	return &clone
}

// T translates message for the active locale.
func (r *Renderer) T(message string, args ...any) string {
	return translate(r.locale, message, r.translator, r.onMissing, args...)
}

// Sanitize applies the rich text policy.
func (r *Renderer) Sanitize(content string) string {
	return r.sanitize(content)
}

// Render writes the field described by p to w, or to p.Node when set. The
// returned error is reserved for authoring bugs (malformed conditions) and
// write failures; a failing control degrades to an inline message.
func (r *Renderer) Render(ctx context.Context, w io.Writer, p Props) (State, error) {
	var buf bytes.Buffer
	state, err := r.render(ctx, &buf, p)
	if err != nil {
		return state, err
	}
	out := w
	if p.Node != nil {
		out = p.Node
	}
	if out == nil {
		return state, nil
	}
	if _, err := buf.WriteTo(out); err != nil {
		return state, fmt.Errorf("render: write field %q: %w", p.Field.ID, err)
	}
	return state, nil
}

// Visible reports whether p would be shown, without rendering it.
func (r *Renderer) Visible(p Props) (bool, error) {
	path := fallback(p.Path, p.Field.ID)
	shown, err := r.evaluator.Visible(p.Bag, p.Field, path)
	if err != nil {
		return false, fmt.Errorf("%w: field %q: %w", ErrConditions, path, err)
	}
	return shown && tabActive(p.Field.Tab, p.ActiveTab), nil
}

func (r *Renderer) render(ctx context.Context, buf *bytes.Buffer, p Props) (State, error) {
	field := p.Field
	path := fallback(p.Path, field.ID)
	name := fallback(p.Name, field.ID)
	value := p.Value
	if value == nil && p.Bag != nil {
		value, _ = values.Get(p.Bag, path)
	}

	caps := r.registry.Resolve(field.Type)
	opts := r.renderOptions(caps, field.Type, p.Options)

	shown, err := r.Visible(Props{Field: field, Path: path, Bag: p.Bag, ActiveTab: p.ActiveTab})
	if err != nil {
		return State{}, err
	}
	if !shown {
		if opts.IsRoot {
			writeMirror(buf, name, true, value)
		}
		report(p.SetValidity, validity.Result{})
		return State{}, nil
	}

	own, checkErr := r.check(caps, value, field)
	own = own.Append(p.Errors.Messages...)

	htmlID := HTMLID(name)
	props := registry.Props{
		Field:     field,
		HTMLID:    htmlID,
		Path:      path,
		Name:      name,
		Value:     value,
		OnChange:  p.OnChange,
		Bag:       p.Bag,
		Validity:  validity.Result{Messages: own.Messages},
		Disabled:  p.Disabled,
		Locale:    r.locale,
		Template:  r.templates,
		Translate: func(message string) string { return r.T(message) },
	}
	if source, args, ok := field.OptionsSource(); ok {
		props.Choices, props.ChoicesErr = r.fetchChoices(ctx, source, args, value)
	}

	children := make(map[string]validity.Result)
	props.RenderChild = r.childRenderer(ctx, p, path, name, children)

	var control bytes.Buffer
	err = checkErr
	if err == nil {
		err = r.control(&control, caps, props)
	}
	if err != nil {
		if errors.Is(err, ErrConditions) {
			return State{}, err
		}
		r.logger.Error("render: field failed to render",
			"field", path,
			"type", field.Type,
			"error", err,
		)
		control.Reset()
		writeFailure(&control, r.T(MsgRenderFailed))
	}

	result := own
	for key, child := range children {
		result = result.WithChild(key, child)
	}
	report(p.SetValidity, result)

	r.writeField(buf, fieldMarkup{
		field:       field,
		caps:        caps,
		opts:        opts,
		htmlID:      htmlID,
		name:        name,
		value:       value,
		control:     control.Bytes(),
		messages:    own.Messages,
		description: caps.DescriptionPosition,
	})
	return State{Shown: true, Validity: result}, nil
}

// check runs the type's validity checker inside the per-field boundary. A
// panicking checker yields an empty result.
func (r *Renderer) check(caps registry.Capabilities, value any, field schema.Field) (result validity.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = validity.Result{}
			err = fmt.Errorf("%w: %v", ErrControlPanic, rec)
		}
	}()
	if caps.CheckValidity == nil {
		return validity.Result{}, nil
	}
	return caps.CheckValidity(value, field), nil
}

// control runs the type's renderer inside the per-field boundary.
func (r *Renderer) control(buf *bytes.Buffer, caps registry.Capabilities, props registry.Props) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrControlPanic, rec)
		}
	}()
	return caps.Render(buf, props)
}

func (r *Renderer) childRenderer(ctx context.Context, parent Props, path, name string, results map[string]validity.Result) func(*bytes.Buffer, registry.Child) error {
	return func(buf *bytes.Buffer, child registry.Child) error {
		opts := child.Options
		opts.IsRoot = false
		_, err := r.render(ctx, buf, Props{
			Field:    child.Field,
			Path:     path + "." + child.Key,
			Name:     name + "[" + child.Key + "]",
			Value:    child.Value,
			OnChange: child.OnChange,
			SetValidity: func(result validity.Result) {
				results[child.Key] = result
			},
			Options:  opts,
			Bag:      parent.Bag,
			Disabled: parent.Disabled,
			Errors:   parent.Errors.Children[child.Key],
		})
		return err
	}
}

func (r *Renderer) fetchChoices(ctx context.Context, source string, args map[string]any, value any) ([]schema.Choice, error) {
	if r.sources == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	choices, err := r.sources.Fetch(ctx, source, options.Query{Value: value, Args: args, Limit: options.DefaultLimit})
	if err != nil {
		r.logger.Warn("render: loading options failed",
			"source", source,
			"error", err,
		)
		return nil, err
	}
	return choices, nil
}

func (r *Renderer) renderOptions(caps registry.Capabilities, fieldType string, opts Options) Options {
	if caps.RenderOptions != nil {
		opts = opts.Merge(*caps.RenderOptions)
	}
	if hooks.Suppressed(r.hooks, hooks.FieldWithoutSection, fieldType) {
		opts.NoFieldWrapper = true
	}
	if hooks.Suppressed(r.hooks, hooks.FieldWithoutWrapper, fieldType) {
		opts.NoControlWrapper = true
	}
	if hooks.Suppressed(r.hooks, hooks.FieldWithoutLabel, fieldType) {
		opts.NoLabel = true
	}
	return opts
}

func tabActive(tab, active string) bool {
	return tab == "" || active == "" || tab == active
}

func report(fn func(validity.Result), result validity.Result) {
	if fn != nil {
		fn(result)
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
