package options

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-customfields/pkg/schema"
)

type recorder struct {
	mu      sync.Mutex
	results []Result
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 16)}
}

func (r *recorder) deliver(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) snapshot() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.notify:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a result")
	}
}

func echo() Fetcher {
	return FetcherFunc(func(ctx context.Context, q Query) ([]schema.Choice, error) {
		return []schema.Choice{{Value: q.Search, Label: q.Search}}, ctx.Err()
	})
}

func TestSearcherDebouncesKeystrokes(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	fetcher := FetcherFunc(func(ctx context.Context, q Query) ([]schema.Choice, error) {
		mu.Lock()
		calls = append(calls, q.Search)
		mu.Unlock()
		return echo().Fetch(ctx, q)
	})

	rec := newRecorder()
	s := NewSearcher(fetcher, rec.deliver, WithDebounce(50*time.Millisecond))
	defer s.Close()

	for _, term := range []string{"p", "pa", "par"} {
		if _, err := s.Search(Query{Search: term}); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	rec.wait(t)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != "par" {
		t.Fatalf("expected a single fetch for the last term, got %v", calls)
	}
	got := rec.snapshot()
	if len(got) != 1 || got[0].Generation != 3 || got[0].Options[0].Value != "par" {
		t.Fatalf("unexpected delivery %+v", got)
	}
}

func TestSearcherDropsSupersededResponses(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	cancelled := make(chan struct{}, 1)
	fetcher := FetcherFunc(func(ctx context.Context, q Query) ([]schema.Choice, error) {
		if q.Search == "slow" {
			started <- struct{}{}
			select {
			case <-ctx.Done():
				cancelled <- struct{}{}
			case <-release:
			}
			return []schema.Choice{{Value: "stale", Label: "stale"}}, nil
		}
		return echo().Fetch(ctx, q)
	})

	rec := newRecorder()
	s := NewSearcher(fetcher, rec.deliver, WithDebounce(0))
	defer s.Close()

	if _, err := s.Search(Query{Search: "slow"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	<-started
	if _, err := s.Search(Query{Search: "fast"}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("in-flight request was not cancelled")
	}
	rec.wait(t)
	close(release)

	got := rec.snapshot()
	if len(got) != 1 || got[0].Query.Search != "fast" {
		t.Fatalf("expected only the newest response, got %+v", got)
	}
	if got[0].Generation != s.Generation() {
		t.Fatalf("delivered generation %d is not current %d", got[0].Generation, s.Generation())
	}
}

func TestSearcherCloseCancelsInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, _ Query) ([]schema.Choice, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := newRecorder()
	s := NewSearcher(fetcher, rec.deliver, WithDebounce(0))
	if _, err := s.Load(Query{Value: "1"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	<-started

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return")
	}

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("nothing may be delivered after teardown, got %+v", got)
	}
	if _, err := s.Search(Query{Search: "x"}); err != ErrSearcherClosed {
		t.Fatalf("expected ErrSearcherClosed, got %v", err)
	}
}

func TestSearcherClosePendingTimer(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	s := NewSearcher(echo(), rec.deliver, WithDebounce(time.Hour))
	if _, err := s.Search(Query{Search: "never"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	s.Close()
	s.Close()
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no deliveries, got %+v", got)
	}
}

func TestSearcherDeliversFetchErrors(t *testing.T) {
	t.Parallel()

	boom := StatusError{Code: 500}
	rec := newRecorder()
	s := NewSearcher(FetcherFunc(func(context.Context, Query) ([]schema.Choice, error) {
		return nil, boom
	}), rec.deliver, WithDebounce(0))
	defer s.Close()

	if _, err := s.Search(Query{Search: "x"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	rec.wait(t)
	got := rec.snapshot()
	if len(got) != 1 || !IsStatus(got[0].Err, 500) {
		t.Fatalf("expected the fetch error to be delivered, got %+v", got)
	}
}
