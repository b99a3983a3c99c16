package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/goliatone/go-customfields/pkg/hooks"
	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/surface"
	"github.com/goliatone/go-customfields/pkg/values"
)

const maxBodyBytes = 4 << 20

// hosted is what the handlers need from every surface kind.
type hosted interface {
	Render(ctx context.Context, w io.Writer) error
	Decode(form url.Values) (values.Bag, error)
	Replace(bag values.Bag)
	Snapshot() values.Bag
	Check(ctx context.Context) (bool, error)
	Errors() map[string][]string
	Definition() schema.Definition
	SetErrors(mapping render.ErrorMapping)
	FormErrors() []string
}

var errBadLoop = errors.New("server: loop must be a non-negative integer")

func (s *Server) newSurface(kind string, def schema.Definition, bag values.Bag, r *http.Request, extra ...surface.Option) (hosted, error) {
	opts := append([]surface.Option{
		surface.WithRenderer(s.renderer),
		surface.WithHooks(s.hooks),
		surface.WithLogger(s.logger),
		surface.WithValues(bag),
	}, extra...)

	switch kind {
	case schema.SurfacePage:
		opts = append(opts,
			surface.WithTab(r.URL.Query().Get(surface.TabParam)),
			surface.WithAction(http.MethodPost, r.URL.RequestURI()),
		)
		return surface.NewPage(def, opts...)
	case schema.SurfaceTerm:
		return surface.NewTermTable(def, opts...)
	case schema.SurfaceBlock:
		return surface.NewBlock(def, opts...)
	case schema.SurfaceVariation:
		loop := 0
		if raw := r.URL.Query().Get("loop"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, errBadLoop
			}
			loop = n
		}
		return surface.NewVariation(def, loop, opts...)
	default:
		return nil, fmt.Errorf("server: unknown surface %q", kind)
	}
}

func (s *Server) handleRenderSurface(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	bag, err := s.storage.LoadOrEmpty(r.Context(), def.ID, vars["object"])
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	view, err := s.newSurface(vars["kind"], def, bag, r)
	if errors.Is(err, errBadLoop) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeSurface(w, r, http.StatusOK, view)
}

// handleSubmitSurface decodes a native form post. Valid values are stored and
// answered with a redirect back to the surface; invalid ones re-render it with
// 422 and leave storage untouched.
func (s *Server) handleSubmitSurface(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	objectID := vars["object"]
	stored, err := s.storage.LoadOrEmpty(r.Context(), def.ID, objectID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	view, err := s.newSurface(vars["kind"], def, stored, r)
	if errors.Is(err, errBadLoop) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	bag, err := view.Decode(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view.Replace(bag)
	valid, err := view.Check(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if valid {
		valid, err = s.checkSubmission(r.Context(), view, objectID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	if !valid {
		s.logger.InfoContext(r.Context(), "server: submission rejected", "definition", def.ID, "object", objectID, "errors", len(view.Errors()))
		s.writeSurface(w, r, http.StatusUnprocessableEntity, view)
		return
	}
	if err := s.storage.Save(r.Context(), def.ID, objectID, view.Snapshot()); err != nil {
		s.logger.ErrorContext(r.Context(), "server: save failed", "definition", def.ID, "object", objectID, "error", err)
		view.SetErrors(render.ErrorMapping{Form: render.MergeFormErrors(view.FormErrors(), saveFailedMessage)})
		s.writeSurface(w, r, http.StatusInternalServerError, view)
		return
	}
	http.Redirect(w, r, r.URL.RequestURI(), http.StatusSeeOther)
}

const saveFailedMessage = "The values could not be saved."

// checker is the part of a surface that host-side errors are fed into.
type checker interface {
	Definition() schema.Definition
	Snapshot() values.Bag
	SetErrors(mapping render.ErrorMapping)
	Check(ctx context.Context) (bool, error)
}

// checkSubmission runs the SubmissionErrors filter over values that passed
// field validation. Returned messages are mapped onto the fields and the
// surface is checked again so they show up in its errors.
func (s *Server) checkSubmission(ctx context.Context, view checker, objectID string) (bool, error) {
	def := view.Definition()
	payload := hooks.Apply(s.hooks, hooks.SubmissionErrors, map[string][]string(nil), def.ID, objectID, view.Snapshot())
	if len(payload) == 0 {
		return true, nil
	}
	mapping := render.MapErrorPayload(def.Fields, payload)
	if mapping.Empty() {
		return true, nil
	}
	view.SetErrors(mapping)
	valid, err := view.Check(ctx)
	if err != nil {
		return false, err
	}
	// Form-level messages do not flip field validity.
	return valid && len(mapping.Form) == 0, nil
}

func (s *Server) writeSurface(w http.ResponseWriter, r *http.Request, status int, view hosted) {
	var buf bytes.Buffer
	if err := view.Render(r.Context(), &buf); err != nil {
		if errors.Is(err, render.ErrConditions) {
			s.logger.ErrorContext(r.Context(), "server: malformed conditions", "path", r.URL.Path, "error", err)
		}
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleGetValues(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	bag, err := s.storage.LoadOrEmpty(r.Context(), def.ID, mux.Vars(r)["object"])
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	root, err := surface.NewRoot(def, surface.WithRenderer(s.renderer), surface.WithHooks(s.hooks), surface.WithValues(bag))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": root.Snapshot()})
}

// handlePutValues stores a JSON value bag after checking it against the
// definition. Rejected bags answer 422 with the messages by field path.
func (s *Server) handlePutValues(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	var payload struct {
		Data values.Bag `json:"data"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	root, err := surface.NewRoot(def, surface.WithRenderer(s.renderer), surface.WithHooks(s.hooks), surface.WithValues(payload.Data))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	valid, err := root.Check(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		return
	}
	objectID := mux.Vars(r)["object"]
	if valid {
		valid, err = s.checkSubmission(r.Context(), root, objectID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
	}
	if !valid {
		body := map[string]any{"errors": root.Errors()}
		if form := root.FormErrors(); len(form) > 0 {
			body["form"] = form
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}

	bag := root.Snapshot()
	if err := s.storage.Save(r.Context(), def.ID, objectID, bag); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "server: values stored", "definition", def.ID, "object", objectID)
	writeJSON(w, http.StatusOK, map[string]any{"data": bag})
}

func (s *Server) handleDeleteValues(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	if err := s.storage.Delete(r.Context(), def.ID, mux.Vars(r)["object"]); err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFragments renders a subset of the top-level fields, selected by the
// "fields", "tabs" and "types" token lists, and answers the markup by id.
func (s *Server) handleFragments(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	bag, err := s.storage.LoadOrEmpty(r.Context(), def.ID, mux.Vars(r)["object"])
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	root, err := surface.NewRoot(def,
		surface.WithRenderer(s.renderer),
		surface.WithHooks(s.hooks),
		surface.WithLogger(s.logger),
		surface.WithValues(bag),
	)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	query := r.URL.Query()
	fragments, err := root.RenderFragments(r.Context(), render.FieldSubset{
		IDs:   render.ParseTokenList(query.Get("fields")),
		Tabs:  render.ParseTokenList(query.Get("tabs")),
		Types: render.ParseTokenList(query.Get("types")),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": fragments, "valid": root.Validate()})
}
