package schema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Source identifies where a schema feed originated so loaders can operate on
// files, fs.FS entries, or URLs without leaking implementation details.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the loader modalities.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
	SourceKindURL  SourceKind = "url"
)

type source struct {
	kind     SourceKind
	location string
}

func (s source) Kind() SourceKind { return s.kind }
func (s source) Location() string { return s.location }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return source{kind: SourceKindFile, location: filepath.Clean(path)}
}

// SourceFromFS returns a Source identifying a resource inside an fs.FS.
func SourceFromFS(name string) Source {
	return source{kind: SourceKindFS, location: name}
}

// SourceFromURL validates raw and returns a URL Source.
func SourceFromURL(raw string) (Source, error) {
	if raw == "" {
		return nil, errors.New("schema: empty URL source")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return nil, fmt.Errorf("schema: invalid URL %q: %w", raw, err)
	}
	return source{kind: SourceKindURL, location: raw}, nil
}

// Fetcher reads raw documents from a Source.
type Fetcher struct {
	fs      fs.FS
	client  *http.Client
	timeout time.Duration
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithFS sets the filesystem used for SourceKindFS.
func WithFS(fsys fs.FS) FetchOption {
	return func(f *Fetcher) { f.fs = fsys }
}

// WithHTTPClient enables URL sources.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(f *Fetcher) { f.client = client }
}

// WithTimeout bounds URL fetches.
func WithTimeout(timeout time.Duration) FetchOption {
	return func(f *Fetcher) { f.timeout = timeout }
}

// NewFetcher constructs a Fetcher. URL sources stay disabled until an HTTP
// client is supplied.
func NewFetcher(options ...FetchOption) *Fetcher {
	f := &Fetcher{timeout: 10 * time.Second}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Fetch returns the raw payload behind src.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src == nil {
		return nil, errors.New("schema: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		data, err = os.ReadFile(src.Location())
	case SourceKindFS:
		if f.fs == nil {
			return nil, errors.New("schema: filesystem is not configured")
		}
		data, err = fs.ReadFile(f.fs, src.Location())
	case SourceKindURL:
		data, err = f.fetchURL(ctx, src.Location())
	default:
		err = fmt.Errorf("schema: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("schema: fetch %s: %w", src.Location(), err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("schema: %s is empty", src.Location())
	}
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, location string) ([]byte, error) {
	if f.client == nil {
		return nil, errors.New("http support disabled")
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
