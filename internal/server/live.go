package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/goliatone/go-customfields/pkg/options"
	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/surface"
	"github.com/goliatone/go-customfields/pkg/values"
)

// ClientMessage is sent by a live block editor.
type ClientMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Values values.Bag      `json:"values,omitempty"`
	Search string          `json:"search,omitempty"`
}

// ServerMessage is pushed to a live block editor.
type ServerMessage struct {
	Type       string              `json:"type"`
	Session    string              `json:"session,omitempty"`
	ID         string              `json:"id,omitempty"`
	Generation uint64              `json:"generation,omitempty"`
	HTML       string              `json:"html,omitempty"`
	Fields     map[string]string   `json:"fields,omitempty"`
	Valid      bool                `json:"valid"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Form       []string            `json:"form,omitempty"`
	Values     values.Bag          `json:"values,omitempty"`
	Options    []schema.Choice     `json:"options,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// Session is one live editing connection over a block surface.
type Session struct {
	ID           string
	DefinitionID string
	ObjectID     string
	CreatedAt    time.Time

	mu        sync.Mutex
	block     *surface.Block
	searchers map[string]*options.Searcher
	closed    bool
}

// Sessions tracks the open live sessions.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

func (s *Sessions) add(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

func (s *Sessions) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Get returns the session with id.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// IDs lists the open session ids, sorted.
func (s *Sessions) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the session's current values.
func (sess *Session) Snapshot() values.Bag {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.block.Snapshot()
}

// searcher returns the options searcher of field id, creating it on first use.
func (sess *Session) searcher(id string, create func() *options.Searcher) (*options.Searcher, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, options.ErrSearcherClosed
	}
	if found, ok := sess.searchers[id]; ok {
		return found, nil
	}
	if sess.searchers == nil {
		sess.searchers = make(map[string]*options.Searcher)
	}
	created := create()
	sess.searchers[id] = created
	return created, nil
}

// close stops every searcher and waits for in-flight option fetches.
func (sess *Session) close() {
	sess.mu.Lock()
	searchers := sess.searchers
	sess.searchers = nil
	sess.closed = true
	sess.mu.Unlock()
	for _, searcher := range searchers {
		searcher.Close()
	}
}

// handleLive upgrades to a websocket and runs a block surface for the
// connection. The first frame is a full render; an update re-renders the
// changed field and its dependents and pushes them as a patch. "search" runs
// a debounced options query, "save" stores the values when they are valid.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	def, ok := s.definition(w, r)
	if !ok {
		return
	}
	objectID := mux.Vars(r)["object"]
	bag, err := s.storage.LoadOrEmpty(r.Context(), def.ID, objectID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	block, err := surface.NewBlock(def,
		surface.WithRenderer(s.renderer),
		surface.WithHooks(s.hooks),
		surface.WithLogger(s.logger),
		surface.WithValues(bag),
	)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		s.logger.WarnContext(r.Context(), "server: websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	sess := &Session{
		ID:           uuid.New().String(),
		DefinitionID: def.ID,
		ObjectID:     objectID,
		CreatedAt:    time.Now(),
		block:        block,
	}
	s.sessions.add(sess)
	defer s.sessions.remove(sess.ID)
	defer sess.close()

	// Hijacked requests are not cancelled when the peer goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.logger.InfoContext(ctx, "server: live session opened", "session", sess.ID, "definition", def.ID, "object", objectID)
	s.send(ctx, conn, ServerMessage{Type: "session", Session: sess.ID})
	s.pushRender(ctx, conn, sess)

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				s.logger.InfoContext(ctx, "server: live session closed", "session", sess.ID, "status", status)
			}
			return
		}

		switch msg.Type {
		case "update":
			if msg.ID == "" || !topLevel(def, msg.ID) {
				s.sendError(ctx, conn, "unknown field "+msg.ID)
				continue
			}
			var value any
			if len(msg.Value) > 0 {
				if err := json.Unmarshal(msg.Value, &value); err != nil {
					s.sendError(ctx, conn, "invalid value")
					continue
				}
			}
			sess.mu.Lock()
			sess.block.UpdateValue(msg.ID)(value)
			stale := !sess.block.ServerErrors().Empty()
			if stale {
				sess.block.SetErrors(render.ErrorMapping{})
			}
			sess.mu.Unlock()
			if stale {
				s.pushRender(ctx, conn, sess)
				continue
			}
			s.pushPatch(ctx, conn, sess, affected(sess.block.Fields(), msg.ID))
		case "search":
			s.search(ctx, conn, sess, msg)
		case "replace":
			sess.mu.Lock()
			sess.block.Replace(msg.Values)
			sess.mu.Unlock()
			s.pushRender(ctx, conn, sess)
		case "save":
			s.saveSession(ctx, conn, sess)
		case "ping":
			s.send(ctx, conn, ServerMessage{Type: "pong", Session: sess.ID})
		default:
			s.sendError(ctx, conn, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) pushRender(ctx context.Context, conn *websocket.Conn, sess *Session) {
	var buf bytes.Buffer
	sess.mu.Lock()
	err := sess.block.Render(ctx, &buf)
	valid := sess.block.Validate()
	errs := sess.block.Errors()
	bag := sess.block.Snapshot()
	sess.mu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "server: live render failed", "session", sess.ID, "error", err)
		s.sendError(ctx, conn, "render failed")
		return
	}
	s.send(ctx, conn, ServerMessage{
		Type:    "render",
		Session: sess.ID,
		HTML:    buf.String(),
		Valid:   valid,
		Errors:  errs,
		Values:  bag,
	})
}

// pushPatch re-renders the fields in ids and pushes their markup by id.
func (s *Server) pushPatch(ctx context.Context, conn *websocket.Conn, sess *Session, ids []string) {
	sess.mu.Lock()
	fragments, err := sess.block.RenderFragments(ctx, render.FieldSubset{IDs: ids})
	valid := sess.block.Validate()
	errs := sess.block.Errors()
	bag := sess.block.Snapshot()
	sess.mu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "server: live render failed", "session", sess.ID, "error", err)
		s.sendError(ctx, conn, "render failed")
		return
	}
	s.send(ctx, conn, ServerMessage{
		Type:    "patch",
		Session: sess.ID,
		Fields:  fragments,
		Valid:   valid,
		Errors:  errs,
		Values:  bag,
	})
}

// affected lists the top-level fields to re-render after id changed: the
// field itself, fields whose conditions reference it and fields with
// validation rules, which may read any value.
func affected(fields []schema.Field, id string) []string {
	out := append([]string{id}, render.Dependents(fields, id)...)
	for _, field := range fields {
		if field.ID != id && reactive(field) {
			out = append(out, field.ID)
		}
	}
	return out
}

func reactive(field schema.Field) bool {
	if strings.TrimSpace(field.Rule) != "" {
		return true
	}
	for _, item := range field.Items {
		if len(item.Conditions) > 0 || reactive(item) {
			return true
		}
	}
	return false
}

// search runs a debounced options query for a field backed by a registered
// source. Results arrive as "options" messages; a newer search for the same
// field supersedes the pending one.
func (s *Server) search(ctx context.Context, conn *websocket.Conn, sess *Session, msg ClientMessage) {
	field, ok := schema.Lookup(sess.block.Fields(), msg.ID)
	if !ok {
		s.sendError(ctx, conn, "unknown field "+msg.ID)
		return
	}
	source, args, ok := field.OptionsSource()
	if !ok {
		s.sendError(ctx, conn, "field "+msg.ID+" has no options source")
		return
	}
	fetcher, ok := s.sources.Get(source)
	if !ok {
		s.sendError(ctx, conn, "unknown options source "+source)
		return
	}

	id := msg.ID
	searcher, err := sess.searcher(id, func() *options.Searcher {
		var created *options.Searcher
		deliver := func(res options.Result) {
			// A newer query may have started while this fetch returned.
			if res.Generation != created.Generation() {
				return
			}
			reply := ServerMessage{Type: "options", Session: sess.ID, ID: id, Generation: res.Generation, Options: res.Options}
			if res.Err != nil {
				s.logger.WarnContext(ctx, "server: live options search failed", "session", sess.ID, "field", id, "error", res.Err)
				reply.Message = "loading options failed"
			}
			s.send(ctx, conn, reply)
		}
		created = options.NewSearcher(fetcher, deliver,
			options.WithDebounce(s.searchDebounce),
			options.WithBaseContext(ctx),
			options.WithSearcherLogger(s.logger),
		)
		return created
	})
	if err != nil {
		return
	}

	sess.mu.Lock()
	value, _ := values.Get(sess.block.Snapshot(), id)
	sess.mu.Unlock()
	query := options.Query{Search: msg.Search, Value: value, Args: args, Limit: options.DefaultLimit}
	run := searcher.Search
	if strings.TrimSpace(msg.Search) == "" {
		// An empty search labels the current value; nothing to debounce.
		run = searcher.Load
	}
	if _, err := run(query); err != nil {
		s.logger.DebugContext(ctx, "server: live search dropped", "session", sess.ID, "field", id, "error", err)
	}
}

func (s *Server) saveSession(ctx context.Context, conn *websocket.Conn, sess *Session) {
	sess.mu.Lock()
	valid, err := sess.block.Check(ctx)
	if err == nil && valid {
		valid, err = s.checkSubmission(ctx, sess.block, sess.ObjectID)
	}
	errs := sess.block.Errors()
	form := sess.block.FormErrors()
	bag := sess.block.Snapshot()
	sess.mu.Unlock()
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}
	if !valid {
		s.send(ctx, conn, ServerMessage{Type: "invalid", Session: sess.ID, Errors: errs, Form: form})
		return
	}
	if err := s.storage.Save(ctx, sess.DefinitionID, sess.ObjectID, bag); err != nil {
		s.logger.ErrorContext(ctx, "server: live save failed", "session", sess.ID, "error", err)
		s.sendError(ctx, conn, "save failed")
		return
	}
	s.send(ctx, conn, ServerMessage{Type: "saved", Session: sess.ID, Valid: true, Values: bag})
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		s.logger.DebugContext(ctx, "server: websocket write", "error", err)
	}
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, message string) {
	s.send(ctx, conn, ServerMessage{Type: "error", Message: message})
}

func topLevel(def schema.Definition, id string) bool {
	for _, field := range def.Fields {
		if field.ID == id {
			return true
		}
	}
	return false
}
