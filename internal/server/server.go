// Package server exposes definitions, rendered surfaces and stored values
// over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/goliatone/go-customfields/internal/storage"
	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
)

// Option configures a Server.
type Option func(*Server)

// WithSources registers the remote option sources served under /options.
func WithSources(sources *options.Sources) Option {
	return func(s *Server) {
		if sources != nil {
			s.sources = sources
		}
	}
}

// WithRenderer sets the field renderer shared by every request.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithHooks sets the filter registry passed to the surfaces.
func WithHooks(h *hooks.Hooks) Option {
	return func(s *Server) {
		s.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithOptionsRateLimit caps the options endpoint.
func WithOptionsRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.optionsRate = perSecond
		s.optionsBurst = burst
	}
}

// WithSearchDebounce sets the quiet period of live option searches.
func WithSearchDebounce(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.searchDebounce = d
		}
	}
}

// WithAccessLog writes an Apache style access log to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// Server wires definitions, storage and surfaces into an HTTP router.
type Server struct {
	definitions    *Definitions
	storage        *storage.Store
	sources        *options.Sources
	renderer       *render.Renderer
	hooks          *hooks.Hooks
	logger         *slog.Logger
	sessions       *Sessions
	origins        []string
	optionsRate    float64
	optionsBurst   int
	searchDebounce time.Duration
	accessLog      io.Writer
}

// New builds a Server.
func New(defs *Definitions, store *storage.Store, opts ...Option) (*Server, error) {
	if defs == nil {
		return nil, errors.New("server: definitions are required")
	}
	if store == nil {
		return nil, errors.New("server: storage is required")
	}
	s := &Server{
		definitions:    defs,
		storage:        store,
		sources:        options.NewSources(),
		logger:         slog.Default(),
		origins:        []string{"*"},
		searchDebounce: options.DefaultDebounce,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.hooks == nil {
		s.hooks = hooks.New(s.logger)
	}
	if s.renderer == nil {
		r, err := render.New(
			render.WithHooks(s.hooks),
			render.WithSources(s.sources),
			render.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	s.sessions = NewSessions()
	return s, nil
}

// Sessions exposes the live editing sessions.
func (s *Server) Sessions() *Sessions { return s.sessions }

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/definitions", s.handleDefinitions).Methods(http.MethodGet)
	api.HandleFunc("/definitions/{definition}", s.handleDefinition).Methods(http.MethodGet)
	api.HandleFunc("/values/{definition}/{object}", s.handleGetValues).Methods(http.MethodGet)
	api.HandleFunc("/values/{definition}/{object}", s.handlePutValues).Methods(http.MethodPut)
	api.HandleFunc("/values/{definition}/{object}", s.handleDeleteValues).Methods(http.MethodDelete)
	api.HandleFunc("/fragments/{definition}/{object}", s.handleFragments).Methods(http.MethodGet)

	const surfacePath = "/surfaces/{kind:page|term|block|variation}/{definition}/{object}"
	r.HandleFunc(surfacePath, s.handleRenderSurface).Methods(http.MethodGet)
	r.HandleFunc(surfacePath, s.handleSubmitSurface).Methods(http.MethodPost)

	r.Handle("/options/{source}", options.Handler(s.sources,
		options.WithSourceName(func(req *http.Request) string { return mux.Vars(req)["source"] }),
		options.WithRateLimit(s.optionsRate, s.optionsBurst),
		options.WithHandlerLogger(s.logger),
	)).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/live/{definition}/{object}", s.handleLive).Methods(http.MethodGet)

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "definitions": len(s.definitions.IDs())}
	if err := s.storage.DB().PingContext(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "server: health check failed", "error", err)
		status["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	ids := s.definitions.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": ids})
}

func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// definition resolves the {definition} route variable, answering 404 when
// it is unknown.
func (s *Server) definition(w http.ResponseWriter, r *http.Request) (schema.Definition, bool) {
	id := mux.Vars(r)["definition"]
	def, err := s.definitions.Definition(id)
	if errors.Is(err, schema.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "definition not found"})
		return schema.Definition{}, false
	}
	if err != nil {
		s.internalError(w, r, err)
		return schema.Definition{}, false
	}
	return def, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "server: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(payload); err != nil {
		slog.Default().Warn("server: encode response", "error", err)
	}
}
