// Package hooks is a small filter bus through which host integrations adjust
// field resolution, definitions and per-type render options.
package hooks

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Hook names consulted by the rendering engine.
const (
	FieldPrefix         = "wpifycf_field_"
	Definition          = "wpifycf_definition"
	FieldWithoutSection = "wcf_field_without_section"
	FieldWithoutWrapper = "wcf_field_without_wrapper"
	FieldWithoutLabel   = "wcf_field_without_label"

	// SubmissionErrors filters a map[string][]string of host-side errors
	// for values that passed field validation. Args are the definition id,
	// the object id and the values bag.
	SubmissionErrors = "wpifycf_submission_errors"
)

// DefaultPriority is used by AddFilter when no priority is supplied.
const DefaultPriority = 10

// Field returns the hook name that resolves renderers for fieldType.
func Field(fieldType string) string {
	return FieldPrefix + strings.ToLower(strings.TrimSpace(fieldType))
}

// Filter receives the current value plus call arguments and returns the
// (possibly replaced) value.
type Filter func(value any, args ...any) any

type entry struct {
	priority int
	seq      int
	fn       Filter
}

// Hooks stores filters by name. The zero value is ready to use.
type Hooks struct {
	mu      sync.RWMutex
	seq     int
	filters map[string][]entry
	logger  *slog.Logger
}

// New returns an empty filter bus.
func New(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{logger: logger}
}

// AddFilter registers fn under name. Lower priorities run first; equal
// priorities run in registration order. The returned func removes the filter.
func (h *Hooks) AddFilter(name string, fn Filter, priority ...int) func() {
	if h == nil || fn == nil || name == "" {
		return func() {}
	}
	p := DefaultPriority
	if len(priority) > 0 {
		p = priority[0]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.filters == nil {
		h.filters = make(map[string][]entry)
	}
	h.seq++
	seq := h.seq
	list := append(h.filters[name], entry{priority: p, seq: seq, fn: fn})
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	h.filters[name] = list

	return func() { h.remove(name, seq) }
}

func (h *Hooks) remove(name string, seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.filters[name]
	for idx, item := range list {
		if item.seq == seq {
			h.filters[name] = append(list[:idx:idx], list[idx+1:]...)
			return
		}
	}
}

// Has reports whether any filter is registered under name.
func (h *Hooks) Has(name string) bool {
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.filters[name]) > 0
}

// Names lists hook names that have filters, sorted.
func (h *Hooks) Names() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.filters))
	for name, list := range h.filters {
		if len(list) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Apply threads value through every filter registered under name.
func (h *Hooks) Apply(name string, value any, args ...any) any {
	if h == nil {
		return value
	}
	h.mu.RLock()
	list := append([]entry(nil), h.filters[name]...)
	h.mu.RUnlock()

	for _, item := range list {
		value = item.fn(value, args...)
	}
	return value
}

// Apply runs the named filters and type-asserts the result back to T. A filter
// returning another type is ignored and logged.
func Apply[T any](h *Hooks, name string, value T, args ...any) T {
	if h == nil || !h.Has(name) {
		return value
	}
	out := h.Apply(name, value, args...)
	typed, ok := out.(T)
	if !ok {
		h.log().Warn("hooks: filter returned unexpected type",
			"hook", name,
			"got", typeName(out),
		)
		return value
	}
	return typed
}

func (h *Hooks) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

func typeName(value any) string {
	return fmt.Sprintf("%T", value)
}
