// Package registry maps field type names to their rendering capabilities.
//
// Built-in types are registered by package fields; hosts override or extend
// them with Register (last write wins) or through the wpifycf_field_{type}
// filter when a hooks bus is attached.
package registry

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
)

// Description positions.
const (
	DescriptionBefore = "before"
	DescriptionAfter  = "after"
)

// Renderer writes a field control into buf.
type Renderer func(buf *bytes.Buffer, props Props) error

// Checker computes the validity of value for field.
type Checker func(value any, field schema.Field) validity.Result

// Normalizer coerces a raw or legacy value into the type's canonical shape.
type Normalizer func(value any, field schema.Field) any

// Titler extracts a short human title from a value, e.g. for collapsed
// repeater rows.
type Titler func(value any, field schema.Field) string

// Capabilities is everything the engine knows about one field type.
type Capabilities struct {
	Name                string
	Render              Renderer
	CheckValidity       Checker
	Normalize           Normalizer
	Title               Titler
	DescriptionPosition string
	RenderOptions       *RenderOptions
	// Composite marks types whose value is an object or array that the hidden
	// mirror serializes as JSON.
	Composite bool
}

// Registry stores capabilities by normalized type name.
type Registry struct {
	mu       sync.RWMutex
	types    map[string]Capabilities
	hooks    *hooks.Hooks
	fallback Capabilities
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithHooks makes Resolve consult the wpifycf_field_{type} filter.
func WithHooks(h *hooks.Hooks) Option {
	return func(r *Registry) {
		r.hooks = h
	}
}

// WithLogger sets the logger used when a type filter fails.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFallback replaces the inert placeholder used for unknown types.
func WithFallback(caps Capabilities) Option {
	return func(r *Registry) {
		if caps.Render != nil {
			r.fallback = caps
		}
	}
}

// New creates an empty registry.
func New(options ...Option) *Registry {
	r := &Registry{
		types:    make(map[string]Capabilities),
		fallback: Fallback(),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register stores caps for fieldType, replacing any earlier registration.
func (r *Registry) Register(fieldType string, caps Capabilities) error {
	name := normalize(fieldType)
	if name == "" {
		return fmt.Errorf("registry: field type is required")
	}
	if caps.Render == nil {
		return fmt.Errorf("registry: render function for %q is nil", name)
	}
	switch caps.DescriptionPosition {
	case "", DescriptionBefore, DescriptionAfter:
	default:
		return fmt.Errorf("registry: invalid description position %q for %q", caps.DescriptionPosition, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	caps.Name = name
	r.types[name] = cloneCapabilities(caps)
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(fieldType string, caps Capabilities) {
	if err := r.Register(fieldType, caps); err != nil {
		panic(err)
	}
}

// Lookup returns the registered capabilities without applying hooks or the
// fallback.
func (r *Registry) Lookup(fieldType string) (Capabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps, ok := r.types[normalize(fieldType)]
	if !ok {
		return Capabilities{}, false
	}
	return cloneCapabilities(caps), true
}

// MultiWildcard is the registration key serving every multi_{type} repeater
// that has no explicit registration of its own.
const MultiWildcard = "multi_*"

// Resolve returns the capabilities for fieldType. Unknown types resolve to the
// fallback placeholder; Resolve never fails.
func (r *Registry) Resolve(fieldType string) Capabilities {
	name := normalize(fieldType)
	caps, ok := r.Lookup(name)
	if !ok && schema.IsMulti(name) && name != MultiWildcard {
		caps, ok = r.Lookup(MultiWildcard)
		caps.Name = name
	}
	if !ok {
		r.mu.RLock()
		caps = r.fallback
		r.mu.RUnlock()
		caps.Name = name
	}
	if r.hooks != nil {
		caps = r.filter(name, caps)
	}
	caps.DescriptionPosition = descriptionPosition(caps.DescriptionPosition)
	return caps
}

// filter applies the wpifycf_field_{type} filter. A filter that panics or
// drops the render function leaves caps unchanged.
func (r *Registry) filter(name string, caps Capabilities) (out Capabilities) {
	out = caps
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("registry: field filter failed", "type", name, "error", rec)
			out = caps
		}
	}()
	if resolved := hooks.Apply(r.hooks, hooks.Field(name), caps, name); resolved.Render != nil {
		out = resolved
	}
	return out
}

// Known reports whether fieldType is registered.
func (r *Registry) Known(fieldType string) bool {
	_, ok := r.Lookup(fieldType)
	return ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns an independent copy sharing the hooks bus.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &Registry{
		types:    make(map[string]Capabilities, len(r.types)),
		hooks:    r.hooks,
		fallback: r.fallback,
		logger:   r.logger,
	}
	for name, caps := range r.types {
		clone.types[name] = cloneCapabilities(caps)
	}
	return clone
}

// Fallback returns the inert placeholder used for unknown field types.
func Fallback() Capabilities {
	return Capabilities{
		Name: "unknown",
		Render: func(buf *bytes.Buffer, props Props) error {
			buf.WriteString(`<div class="cf-unknown-field" data-field-type="`)
			buf.WriteString(html.EscapeString(props.Field.Type))
			buf.WriteString(`"></div>`)
			return nil
		},
	}
}

func cloneCapabilities(src Capabilities) Capabilities {
	if src.RenderOptions != nil {
		opts := *src.RenderOptions
		src.RenderOptions = &opts
	}
	return src
}

func descriptionPosition(value string) string {
	if value == DescriptionBefore {
		return DescriptionBefore
	}
	return DescriptionAfter
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
