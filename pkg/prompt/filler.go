// Package prompt fills a definition from a terminal. It walks the fields in
// order, skips the ones whose conditions hide them, and re-prompts until each
// answer passes the field type's validity check.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-customfields/pkg/conditions"
	"github.com/goliatone/go-customfields/pkg/fields"
	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

const noneLabel = "(none)"

var plainText = bluemonday.StrictPolicy()

// Filler drives a Driver through a definition.
type Filler struct {
	driver    Driver
	registry  *registry.Registry
	evaluator *conditions.Evaluator
	sources   *options.Sources
	logger    *slog.Logger
}

// New constructs a Filler. The default driver talks to the terminal.
func New(opts ...Option) *Filler {
	f := &Filler{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	if f.registry == nil {
		f.registry = fields.NewRegistry()
	}
	if f.evaluator == nil {
		f.evaluator = conditions.New(conditions.WithLogger(f.logger))
	}
	return f
}

// Fill prompts for every shown field of def, starting from bag, and returns
// the normalised result. Hidden fields keep their values.
func (f *Filler) Fill(ctx context.Context, def schema.Definition, bag values.Bag) (values.Bag, error) {
	if ctx == nil {
		return nil, errors.New("prompt: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &session{Filler: f, bag: fields.NormalizeBagWith(f.registry, def.Fields, bag)}
	if def.Title != "" {
		if err := f.driver.Info(ctx, plain(def.Title)); err != nil {
			return nil, err
		}
	}

	tabs := make(map[string]string, len(def.Tabs))
	for _, tab := range def.Tabs {
		tabs[tab.ID] = tab.Label
	}
	currentTab := ""
	for _, field := range def.Fields {
		if field.Tab != "" && field.Tab != currentTab {
			currentTab = field.Tab
			label := tabs[currentTab]
			if label == "" {
				label = currentTab
			}
			if err := f.driver.Info(ctx, "== "+plain(label)+" =="); err != nil {
				return nil, err
			}
		}
		if err := s.field(ctx, field, field.ID); err != nil {
			return nil, err
		}
	}

	f.logger.Debug("prompt: definition filled", "definition", def.ID)
	return fields.NormalizeBagWith(f.registry, def.Fields, s.bag), nil
}

type session struct {
	*Filler
	bag values.Bag
}

func (s *session) field(ctx context.Context, field schema.Field, path string) error {
	shown, err := s.evaluator.Visible(s.bag, field, path)
	if err != nil {
		return fmt.Errorf("prompt: field %q: %w", path, err)
	}
	if !shown {
		return nil
	}
	value, _ := values.Get(s.bag, path)

	switch field.Type {
	case fields.TypeHidden:
		return nil
	case fields.TypeHTML, fields.TypeTitle:
		if field.Title != "" {
			return s.driver.Info(ctx, label(field))
		}
		return nil
	case fields.TypeGroup:
		if field.Title != "" {
			if err := s.driver.Info(ctx, label(field)); err != nil {
				return err
			}
		}
		for _, child := range field.Items {
			if err := s.field(ctx, child, path+"."+child.ID); err != nil {
				return err
			}
		}
		return nil
	case fields.TypeMultiSelect, fields.TypeMultiCheckbox:
		return s.multiChoice(ctx, field, path, value)
	case fields.TypeSelect, fields.TypeRadio, fields.TypePost, fields.TypeTerm:
		return s.choice(ctx, field, path, value)
	case fields.TypeCheckbox, fields.TypeToggle:
		return s.ask(ctx, field, path, func() (any, error) {
			current, _ := value.(bool)
			return s.driver.Confirm(ctx, ConfirmConfig{Message: label(field), Default: current, Help: help(field)})
		})
	case fields.TypeTextarea, fields.TypeCode, fields.TypeWysiwyg:
		return s.ask(ctx, field, path, func() (any, error) {
			return s.driver.TextArea(ctx, TextAreaConfig{Message: label(field), Default: text(value), Help: help(field)})
		})
	case fields.TypePassword:
		return s.ask(ctx, field, path, func() (any, error) {
			return s.driver.Password(ctx, InputConfig{Message: label(field), Default: text(value), Help: help(field)})
		})
	case fields.TypeLink:
		return s.link(ctx, field, path, value)
	}

	if schema.IsMulti(field.Type) {
		return s.repeater(ctx, field, path, value)
	}
	if !s.registry.Known(field.Type) {
		s.logger.Warn("prompt: unsupported field type", "field", path, "type", field.Type)
		return s.driver.Info(ctx, fmt.Sprintf("Skipping %s: unsupported field type %q", path, field.Type))
	}
	return s.ask(ctx, field, path, func() (any, error) {
		return s.driver.Input(ctx, InputConfig{Message: label(field), Default: text(value), Help: help(field)})
	})
}

// ask reads answers until one passes the type's validity check, then stores
// it at path.
func (s *session) ask(ctx context.Context, field schema.Field, path string, read func() (any, error)) error {
	caps := s.registry.Resolve(field.Type)
	for {
		raw, err := read()
		if err != nil {
			return err
		}

		value := raw
		if caps.Normalize != nil {
			value = caps.Normalize(raw, field)
		}
		if caps.CheckValidity != nil {
			if result := caps.CheckValidity(value, field); !result.Valid() {
				msg := strings.Join(result.Messages, " ")
				if msg == "" {
					msg = "invalid value"
				}
				if err := s.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", path, msg)); err != nil {
					return err
				}
				continue
			}
		}
		return s.set(path, value)
	}
}

func (s *session) set(path string, value any) error {
	next, err := values.SetPath(s.bag, path, value)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	s.bag = next
	return nil
}

func (s *session) choices(ctx context.Context, field schema.Field, path string, value any) []schema.Choice {
	source, args, ok := field.OptionsSource()
	if !ok || s.sources == nil {
		return field.Choices()
	}
	choices, err := s.sources.Fetch(ctx, source, options.Query{Value: value, Args: args, Limit: options.DefaultLimit})
	if err != nil {
		s.logger.Warn("prompt: options source failed", "field", path, "source", source, "error", err)
		_ = s.driver.Info(ctx, fmt.Sprintf("Error loading options for %s", path))
		return field.Choices()
	}
	return choices
}

func (s *session) choice(ctx context.Context, field schema.Field, path string, value any) error {
	choices := s.choices(ctx, field, path, value)
	if len(choices) == 0 {
		if field.Required {
			return fmt.Errorf("%w: %s", ErrNoChoices, path)
		}
		return nil
	}

	var opts []string
	offset := 0
	if !field.Required {
		opts = append(opts, noneLabel)
		offset = 1
	}
	current := text(value)
	defaultIndex := 0
	for idx, choice := range choices {
		opts = append(opts, plain(choice.Label))
		if choice.Value == current {
			defaultIndex = idx + offset
		}
	}

	return s.ask(ctx, field, path, func() (any, error) {
		idx, err := s.driver.Select(ctx, SelectConfig{Message: label(field), Options: opts, DefaultIndex: defaultIndex, Help: help(field)})
		if err != nil {
			return nil, err
		}
		idx -= offset
		if idx < 0 || idx >= len(choices) {
			return "", nil
		}
		return choices[idx].Value, nil
	})
}

func (s *session) multiChoice(ctx context.Context, field schema.Field, path string, value any) error {
	choices := s.choices(ctx, field, path, value)
	if len(choices) == 0 {
		return nil
	}
	selected := make(map[string]struct{})
	if list, ok := value.([]any); ok {
		for _, item := range list {
			selected[text(item)] = struct{}{}
		}
	}
	opts := make([]string, 0, len(choices))
	var defaults []int
	for idx, choice := range choices {
		opts = append(opts, plain(choice.Label))
		if _, ok := selected[choice.Value]; ok {
			defaults = append(defaults, idx)
		}
	}

	return s.ask(ctx, field, path, func() (any, error) {
		indices, err := s.driver.MultiSelect(ctx, SelectConfig{Message: label(field), Options: opts, Defaults: defaults, Help: help(field)})
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(choices) {
				out = append(out, choices[idx].Value)
			}
		}
		return out, nil
	})
}

func (s *session) link(ctx context.Context, field schema.Field, path string, value any) error {
	current, _ := value.(map[string]any)
	return s.ask(ctx, field, path, func() (any, error) {
		link := map[string]any{"post": current["post"]}
		var err error
		if link["url"], err = s.driver.Input(ctx, InputConfig{Message: label(field) + " URL", Default: text(current["url"]), Help: help(field)}); err != nil {
			return nil, err
		}
		if link["label"], err = s.driver.Input(ctx, InputConfig{Message: label(field) + " text", Default: text(current["label"])}); err != nil {
			return nil, err
		}
		blank, err := s.driver.Confirm(ctx, ConfirmConfig{Message: "Open in a new tab?", Default: current["target"] == "_blank"})
		if err != nil {
			return nil, err
		}
		link["target"] = ""
		if blank {
			link["target"] = "_blank"
		}
		return link, nil
	})
}

func (s *session) repeater(ctx context.Context, field schema.Field, path string, value any) error {
	items, _ := value.([]any)
	minimum, maximum := 0, 0
	if v, ok := field.Float("min"); ok && v > 0 {
		minimum = int(v)
	}
	if v, ok := field.Float("max"); ok && v > 0 {
		maximum = int(v)
	}
	if field.Title != "" {
		if err := s.driver.Info(ctx, label(field)); err != nil {
			return err
		}
	}
	if err := s.set(path, append([]any{}, items...)); err != nil {
		return err
	}

	count := len(items)
	for idx := 0; idx < count; idx++ {
		if err := s.item(ctx, field, path, idx); err != nil {
			return err
		}
	}
	for maximum == 0 || count < maximum {
		if count >= minimum {
			more, err := s.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add %s item?", label(field))})
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		if err := s.set(path+"."+strconv.Itoa(count), nil); err != nil {
			return err
		}
		if err := s.item(ctx, field, path, count); err != nil {
			return err
		}
		count++
	}
	return nil
}

func (s *session) item(ctx context.Context, field schema.Field, path string, idx int) error {
	item := fields.ItemField(field, idx)
	item.Title = fmt.Sprintf("%s #%d", label(field), idx+1)
	item.Required = true
	return s.field(ctx, item, path+"."+strconv.Itoa(idx))
}

func label(field schema.Field) string {
	if field.Title != "" {
		return plain(field.Title)
	}
	return field.ID
}

func help(field schema.Field) string {
	return plain(field.Description)
}

func plain(content string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(content)))
}

func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
