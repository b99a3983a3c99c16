package schema_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-customfields/pkg/schema"
)

func TestFetcherReadsEverySourceKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "profile.json")
	if err := os.WriteFile(path, []byte(`{"id":"profile"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("id: remote\n"))
	}))
	t.Cleanup(srv.Close)

	fetcher := schema.NewFetcher(
		schema.WithFS(fstest.MapFS{"defs/a.json": {Data: []byte(`{"id":"a"}`)}}),
		schema.WithHTTPClient(srv.Client()),
	)

	data, err := fetcher.Fetch(ctx, schema.SourceFromFile(path))
	if err != nil || !strings.Contains(string(data), "profile") {
		t.Fatalf("file: %q, %v", data, err)
	}
	data, err = fetcher.Fetch(ctx, schema.SourceFromFS("defs/a.json"))
	if err != nil || !strings.Contains(string(data), `"a"`) {
		t.Fatalf("fs: %q, %v", data, err)
	}

	remote, err := schema.SourceFromURL(srv.URL + "/profile.yaml")
	if err != nil {
		t.Fatal(err)
	}
	data, err = fetcher.Fetch(ctx, remote)
	if err != nil || string(data) != "id: remote\n" {
		t.Fatalf("url: %q, %v", data, err)
	}

	missing, _ := schema.SourceFromURL(srv.URL + "/missing.yaml")
	if _, err := fetcher.Fetch(ctx, missing); err == nil || !strings.Contains(err.Error(), "unexpected status 404") {
		t.Fatalf("expected a status error, got %v", err)
	}
}

func TestFetcherWithoutClientRejectsURLs(t *testing.T) {
	t.Parallel()
	src, err := schema.SourceFromURL("https://example.com/defs.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := schema.NewFetcher().Fetch(context.Background(), src); err == nil {
		t.Fatal("expected URL sources to be disabled")
	}
	if _, err := schema.SourceFromURL(""); err == nil {
		t.Fatal("expected an empty URL error")
	}
}
