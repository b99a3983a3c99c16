// Package options resolves choices for searchable selects and post or term
// pickers.
//
// A Fetcher is the black-box remote options endpoint: it receives the search
// term, the current value and free-form filter arguments and returns ordered
// value/label pairs. Searcher wraps a Fetcher with debouncing and
// cancellation; Handler exposes registered sources over HTTP and HTTPFetcher
// consumes such an endpoint.
package options

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// ErrUnknownSource is returned when no fetcher is registered for a source.
var ErrUnknownSource = errors.New("options: unknown source")

// Query is the request sent to an options source.
type Query struct {
	Search string         `json:"search"`
	Value  any            `json:"value,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// Fetcher loads options for a query.
type Fetcher interface {
	Fetch(ctx context.Context, query Query) ([]schema.Choice, error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc func(ctx context.Context, query Query) ([]schema.Choice, error)

// Fetch delegates to the underlying function.
func (fn FetcherFunc) Fetch(ctx context.Context, query Query) ([]schema.Choice, error) {
	return fn(ctx, query)
}

// Sources maps source names (the field's options_source) to fetchers.
type Sources struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewSources returns an empty source set.
func NewSources() *Sources {
	return &Sources{fetchers: make(map[string]Fetcher)}
}

// Register stores fetcher under name, replacing earlier registrations.
func (s *Sources) Register(name string, fetcher Fetcher) error {
	name = normalize(name)
	if name == "" {
		return errors.New("options: source name is required")
	}
	if fetcher == nil {
		return fmt.Errorf("options: fetcher for %q is nil", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchers == nil {
		s.fetchers = make(map[string]Fetcher)
	}
	s.fetchers[name] = fetcher
	return nil
}

// Get returns the fetcher registered under name.
func (s *Sources) Get(name string) (Fetcher, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fetcher, ok := s.fetchers[normalize(name)]
	return fetcher, ok
}

// Names lists the registered sources, sorted.
func (s *Sources) Names() []string {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.fetchers))
	for name := range s.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fetch runs the named source.
func (s *Sources) Fetch(ctx context.Context, name string, query Query) ([]schema.Choice, error) {
	fetcher, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return fetcher.Fetch(ctx, query)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
