package options

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// DefaultDebounce is the quiet period after the last keystroke before a
// search is sent.
const DefaultDebounce = 300 * time.Millisecond

// ErrSearcherClosed is returned by Search after Close.
var ErrSearcherClosed = errors.New("options: searcher closed")

// Result is one delivered search outcome.
type Result struct {
	Generation uint64
	Query      Query
	Options    []schema.Choice
	Err        error
}

// Searcher debounces queries against a Fetcher. Every call to Search starts
// a new generation: the pending timer is reset, the in-flight request of the
// previous generation is cancelled, and a response is delivered only while
// its generation is still the newest one.
type Searcher struct {
	fetcher Fetcher
	deliver func(Result)
	delay   time.Duration
	logger  *slog.Logger
	base    context.Context

	mu         sync.Mutex
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithDebounce overrides the debounce delay. Zero sends immediately.
func WithDebounce(delay time.Duration) SearcherOption {
	return func(s *Searcher) {
		if delay >= 0 {
			s.delay = delay
		}
	}
}

// WithSearcherLogger sets the logger used for dropped responses.
func WithSearcherLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBaseContext parents every request context on ctx.
func WithBaseContext(ctx context.Context) SearcherOption {
	return func(s *Searcher) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

// NewSearcher wires fetcher to deliver.
func NewSearcher(fetcher Fetcher, deliver func(Result), opts ...SearcherOption) *Searcher {
	s := &Searcher{
		fetcher: fetcher,
		deliver: deliver,
		delay:   DefaultDebounce,
		logger:  slog.Default(),
		base:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Search schedules query and returns its generation.
func (s *Searcher) Search(query Query) (uint64, error) {
	return s.schedule(query, s.delay)
}

// Load sends query without waiting for the debounce period. Surfaces use it
// to label the current value on first render.
func (s *Searcher) Load(query Query) (uint64, error) {
	return s.schedule(query, 0)
}

func (s *Searcher) schedule(query Query, delay time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSearcherClosed
	}
	s.stopLocked()

	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel

	s.wg.Add(1)
	s.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.run(ctx, gen, query)
	})
	return gen, nil
}

// stopLocked stops the pending timer and cancels the in-flight request.
func (s *Searcher) stopLocked() {
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) run(ctx context.Context, gen uint64, query Query) {
	if ctx.Err() != nil {
		return
	}
	choices, err := s.fetcher.Fetch(ctx, query)
	if !s.current(gen) || ctx.Err() != nil {
		s.logger.Debug("options: dropping stale response", "generation", gen, "search", query.Search)
		return
	}
	if s.deliver != nil {
		s.deliver(Result{Generation: gen, Query: query, Options: choices, Err: err})
	}
}

func (s *Searcher) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.generation
}

// Generation returns the newest generation handed out.
func (s *Searcher) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Close cancels pending and in-flight work and waits for running fetches to
// return. Nothing is delivered after Close returns.
func (s *Searcher) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()
	s.wg.Wait()
}
