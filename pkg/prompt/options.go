package prompt

import (
	"log/slog"

	"github.com/goliatone/go-customfields/pkg/conditions"
	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/registry"
)

// OutputFormat controls how Encode serialises a filled bag.
type OutputFormat string

const (
	// OutputFormatJSON emits application/json payloads.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded emits the bracketed form encoding a native
	// submission would post.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText emits one path=value line per leaf.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithRegistry sets the field types used for validity checks and
// normalisation.
func WithRegistry(reg *registry.Registry) Option {
	return func(f *Filler) {
		if reg != nil {
			f.registry = reg
		}
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(e *conditions.Evaluator) Option {
	return func(f *Filler) {
		if e != nil {
			f.evaluator = e
		}
	}
}

// WithSources lets choice fields with an options_source load their choices.
// Without it such fields fall back to their static options.
func WithSources(sources *options.Sources) Option {
	return func(f *Filler) {
		f.sources = sources
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}
