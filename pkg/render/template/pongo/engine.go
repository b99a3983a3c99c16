// Package pongo adapts flosch/pongo2 to the template.TemplateRenderer
// contract.
package pongo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-customfields/pkg/render/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	baseDir   string
	templates fs.FS
	extension string
	globals   map[string]any
	filters   map[string]func(any, any) (any, error)
}

// WithBaseDir loads templates from a directory on disk. It takes precedence
// over WithFS when both are set so hosts can override embedded templates.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension sets the suffix appended to template names that lack one.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithGlobals seeds values visible to every template.
func WithGlobals(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globals[strings.TrimSpace(key)] = value
		}
	}
}

// WithFilter registers a filter when the engine is built.
func WithFilter(name string, fn func(input any, param any) (any, error)) Option {
	return func(cfg *config) {
		if fn == nil || strings.TrimSpace(name) == "" {
			return
		}
		if cfg.filters == nil {
			cfg.filters = make(map[string]func(any, any) (any, error))
		}
		cfg.filters[strings.TrimSpace(name)] = fn
	}
}

// Engine renders pongo2 templates with a per-engine template cache.
type Engine struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
	ext       string
}

var _ template.TemplateRenderer = (*Engine)(nil)

// New constructs an Engine.
func New(options ...Option) (*Engine, error) {
	cfg := &config{extension: ".tpl"}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.baseDir == "" && cfg.templates == nil {
		return nil, errors.New("pongo: need a base dir or an fs.FS")
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("pongo: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}

	engine := &Engine{
		set:       pongo2.NewSet("customfields", loaders...),
		templates: make(map[string]*pongo2.Template),
		ext:       cfg.extension,
	}
	registerDefaultFilters()

	if err := engine.GlobalContext(cfg.globals); err != nil {
		return nil, fmt.Errorf("pongo: apply globals: %w", err)
	}
	for name, fn := range cfg.filters {
		if err := engine.RegisterFilter(name, fn); err != nil && !errors.Is(err, errFilterExists) {
			return nil, err
		}
	}
	return engine, nil
}

// RenderTemplate renders the named template. The extension is appended when
// missing.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("pongo: engine is nil")
	}
	path := name
	if !strings.HasSuffix(path, e.ext) {
		path += e.ext
	}
	tmpl, err := e.template(path)
	if err != nil {
		return "", err
	}
	return e.execute(tmpl, path, data, out)
}

// RenderString renders an inline template.
func (e *Engine) RenderString(content string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("pongo: engine is nil")
	}
	tmpl, err := e.set.FromString(content)
	if err != nil {
		return "", fmt.Errorf("pongo: parse template string: %w", err)
	}
	return e.execute(tmpl, "<string>", data, out)
}

func (e *Engine) execute(tmpl *pongo2.Template, name string, data any, out []io.Writer) (string, error) {
	ctx, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("pongo: convert data for %s: %w", name, err)
	}

	var buf bytes.Buffer
	e.mu.RLock()
	err = tmpl.ExecuteWriter(ctx, &buf)
	e.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("pongo: execute %s: %w", name, err)
	}

	rendered := buf.String()
	for _, w := range out {
		if w == nil {
			continue
		}
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

var (
	errFilterExists = errors.New("pongo: filter already exists")

	// pongo2 keeps filters in a process-wide map without locking.
	filterMu sync.Mutex
)

// RegisterFilter registers a process-wide pongo2 filter.
func (e *Engine) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("pongo: filter name and function required")
	}
	filterMu.Lock()
	defer filterMu.Unlock()
	if pongo2.FilterExists(name) {
		return fmt.Errorf("%w: %q", errFilterExists, name)
	}
	return pongo2.RegisterFilter(name, func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramValue any
		if param != nil {
			paramValue = param.Interface()
		}
		result, err := fn(in.Interface(), paramValue)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	})
}

// GlobalContext merges data into the globals of the template set.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.set == nil {
		return errors.New("pongo: engine is nil")
	}
	if data == nil {
		return nil
	}
	ctx, err := toContext(data)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set.Globals == nil {
		e.set.Globals = make(pongo2.Context)
	}
	e.set.Globals.Update(ctx)
	return nil
}

func (e *Engine) template(path string) (*pongo2.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.templates[path]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("pongo: load template %q: %w", path, err)
	}
	e.templates[path] = tmpl
	return tmpl, nil
}

func toContext(data any) (pongo2.Context, error) {
	switch typed := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		return typed, nil
	case map[string]any:
		return pongo2.Context(typed), nil
	default:
		if reflect.TypeOf(data).Kind() == reflect.Struct || reflect.TypeOf(data).Kind() == reflect.Pointer {
			raw, err := json.Marshal(data)
			if err != nil {
				return nil, err
			}
			out := pongo2.Context{}
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("unsupported template data %T", data)
	}
}

func registerDefaultFilters() {
	filterMu.Lock()
	defer filterMu.Unlock()
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("tojson") {
		_ = pongo2.RegisterFilter("tojson", filterJSON)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

func filterJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	raw, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:tojson", OrigError: err}
	}
	return pongo2.AsValue(string(raw)), nil
}
