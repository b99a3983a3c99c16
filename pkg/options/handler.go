package options

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// GuardFunc authorizes an options request. Returning an HTTPError selects
// the response status; other errors answer 403.
type GuardFunc func(r *http.Request) error

// HandlerConfig configures Handler.
type HandlerConfig struct {
	Sources *Sources
	Guard   GuardFunc
	Limiter *rate.Limiter
	Logger  *slog.Logger
	// SourceName extracts the source from the request. Defaults to the last
	// path segment.
	SourceName func(r *http.Request) string
}

// HandlerOption configures Handler.
type HandlerOption func(*HandlerConfig)

// WithGuard installs an authorization check.
func WithGuard(guard GuardFunc) HandlerOption {
	return func(c *HandlerConfig) { c.Guard = guard }
}

// WithRateLimit caps requests per second across all callers.
func WithRateLimit(perSecond float64, burst int) HandlerOption {
	return func(c *HandlerConfig) {
		if perSecond <= 0 {
			c.Limiter = nil
			return
		}
		if burst <= 0 {
			burst = int(math.Ceil(perSecond))
		}
		c.Limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithSourceName overrides how the source name is read from the request.
func WithSourceName(fn func(r *http.Request) string) HandlerOption {
	return func(c *HandlerConfig) {
		if fn != nil {
			c.SourceName = fn
		}
	}
}

// WithHandlerLogger sets the logger used for fetch failures.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// Handler serves registered sources as GET /{source}?search=&value=.
func Handler(sources *Sources, opts ...HandlerOption) http.Handler {
	cfg := HandlerConfig{
		Sources: sources,
		Logger:  slog.Default(),
		SourceName: func(r *http.Request) string {
			return path.Base(strings.TrimSuffix(r.URL.Path, "/"))
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if cfg.Limiter != nil && !cfg.Limiter.Allow() {
			retry := 1
			if limit := cfg.Limiter.Limit(); limit > 0 && limit < 1 {
				retry = int(math.Ceil(1 / float64(limit)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		if cfg.Guard != nil {
			if err := cfg.Guard(r); err != nil {
				writeError(w, err, http.StatusForbidden)
				return
			}
		}

		name := cfg.SourceName(r)
		fetcher, ok := cfg.Sources.Get(name)
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}

		choices, err := fetcher.Fetch(r.Context(), DecodeQuery(r.URL.Query()))
		if err != nil {
			cfg.Logger.Error("options: fetch failed", "source", name, "error", err)
			writeError(w, err, http.StatusBadGateway)
			return
		}
		if choices == nil {
			choices = []schema.Choice{}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(true)
		_ = enc.Encode(envelope{Data: choices})
	})
}

func writeError(w http.ResponseWriter, err error, fallback int) {
	code := fallback
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		if status := httpErr.StatusCode(); status > 0 {
			code = status
		}
	}
	http.Error(w, http.StatusText(code), code)
}
