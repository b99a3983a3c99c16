package options

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-customfields/pkg/schema"
)

type querySink struct {
	mu    sync.Mutex
	query Query
}

func (s *querySink) set(q Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

func (s *querySink) get() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func testSources(t *testing.T) (*Sources, *querySink) {
	t.Helper()
	seen := &querySink{}
	sources := NewSources()
	if err := sources.Register("posts", FetcherFunc(func(_ context.Context, q Query) ([]schema.Choice, error) {
		seen.set(q)
		return []schema.Choice{{Value: "1", Label: "Hello <world>"}}, nil
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sources.Register("broken", FetcherFunc(func(context.Context, Query) ([]schema.Choice, error) {
		return nil, errors.New("database down")
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := sources.Register("empty", FetcherFunc(func(context.Context, Query) ([]schema.Choice, error) {
		return nil, nil
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return sources, seen
}

func TestHandlerServesEnvelope(t *testing.T) {
	t.Parallel()

	sources, seen := testSources(t)
	h := Handler(sources)

	req := httptest.NewRequest(http.MethodGet, "/options/posts?search=hel&value=1&value=2&post_type=page", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content-type, got %q", ct)
	}
	var payload envelope
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]schema.Choice{{Value: "1", Label: "Hello <world>"}}, payload.Data); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	want := Query{Search: "hel", Value: []any{"1", "2"}, Args: map[string]any{"post_type": "page"}}
	if diff := cmp.Diff(want, seen.get()); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestHandlerEmptyResultIsArray(t *testing.T) {
	t.Parallel()

	sources, _ := testSources(t)
	rec := httptest.NewRecorder()
	Handler(sources).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/options/empty", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != `{"data":[]}` {
		t.Fatalf("expected empty data array, got %s", body)
	}
}

func TestHandlerErrors(t *testing.T) {
	t.Parallel()

	sources, _ := testSources(t)
	cases := []struct {
		name   string
		method string
		target string
		opts   []HandlerOption
		status int
	}{
		{name: "method", method: http.MethodPost, target: "/options/posts", status: http.StatusMethodNotAllowed},
		{name: "unknown source", method: http.MethodGet, target: "/options/nope", status: http.StatusNotFound},
		{name: "fetch failure", method: http.MethodGet, target: "/options/broken", status: http.StatusBadGateway},
		{
			name: "guard", method: http.MethodGet, target: "/options/posts", status: http.StatusUnauthorized,
			opts: []HandlerOption{WithGuard(func(*http.Request) error { return StatusError{Code: http.StatusUnauthorized} })},
		},
		{
			name: "guard default", method: http.MethodGet, target: "/options/posts", status: http.StatusForbidden,
			opts: []HandlerOption{WithGuard(func(*http.Request) error { return errors.New("no") })},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			Handler(sources, tc.opts...).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestHandlerRateLimit(t *testing.T) {
	t.Parallel()

	sources, _ := testSources(t)
	h := Handler(sources, WithRateLimit(0.5, 1))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/options/posts", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/options/posts", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
}

func TestHTTPFetcherAgainstHandler(t *testing.T) {
	t.Parallel()

	sources, seen := testSources(t)
	srv := httptest.NewServer(http.StripPrefix("/api", Handler(sources)))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.URL+"/api/posts", WithHeader("X-Nonce", "abc"))
	got, err := fetcher.Fetch(context.Background(), Query{
		Search: "hel",
		Value:  float64(7),
		Args:   map[string]any{"taxonomy": []any{"a", "b"}},
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Label != "Hello <world>" {
		t.Fatalf("unexpected choices %v", got)
	}
	want := Query{Search: "hel", Value: "7", Args: map[string]any{"taxonomy": []any{"a", "b"}}}
	if diff := cmp.Diff(want, seen.get()); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}

	_, err = NewHTTPFetcher(srv.URL+"/api/broken").Fetch(context.Background(), Query{})
	if !IsStatus(err, http.StatusBadGateway) {
		t.Fatalf("expected a 502 StatusError, got %v", err)
	}
}

func TestEncodeDecodeQuery(t *testing.T) {
	t.Parallel()

	params := url.Values{}
	EncodeQuery(params, Query{Search: "x", Value: []any{"1", float64(2)}, Limit: 5, Args: map[string]any{"flag": true}})
	got := DecodeQuery(params)
	want := Query{Search: "x", Value: []any{"1", "2"}, Limit: 5, Args: map[string]any{"flag": "true"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}
