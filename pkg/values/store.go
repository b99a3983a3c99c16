package values

import (
	"log/slog"
	"reflect"
	"sync"
)

// Store owns a value bag. Every mutation replaces the bag with a new snapshot,
// so a Snapshot taken before a render stays consistent for its whole duration.
type Store interface {
	// Snapshot returns the current bag. It must be treated as read-only.
	Snapshot() Bag
	// UpdateValue returns the setter bound to one field id. The setter
	// replaces that field's whole value and leaves other keys untouched.
	UpdateValue(id string) func(any)
	// Replace swaps the whole bag, e.g. after the host reloads its state.
	Replace(Bag)
	// Subscribe registers fn to run after every change. The returned func
	// removes the subscription.
	Subscribe(fn func(Bag)) (cancel func())
}

// Option configures a store.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(options []Option) config {
	cfg := config{logger: slog.Default()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Bag)
}

func (s *subscribers) add(fn func(Bag)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Bag))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(bag Bag) {
	s.mu.Lock()
	fns := make([]func(Bag), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(bag)
	}
}

// Memory is the internally owned store used by self-contained surfaces.
type Memory struct {
	mu     sync.RWMutex
	bag    Bag
	subs   subscribers
	logger *slog.Logger
}

// NewMemory seeds a store with a deep copy of initial.
func NewMemory(initial Bag, options ...Option) *Memory {
	cfg := newConfig(options)
	bag := initial.Clone()
	return &Memory{bag: bag, logger: cfg.logger}
}

// Snapshot implements Store.
func (m *Memory) Snapshot() Bag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bag
}

// UpdateValue implements Store. Setting a value equal to the current one is a
// no-op and does not notify subscribers.
func (m *Memory) UpdateValue(id string) func(any) {
	return func(value any) {
		m.mu.Lock()
		if current, ok := m.bag[id]; ok && reflect.DeepEqual(current, value) {
			m.mu.Unlock()
			return
		}
		next := m.bag.With(id, value)
		m.bag = next
		m.mu.Unlock()

		m.logger.Debug("values: field updated", "field", id)
		m.subs.notify(next)
	}
}

// Replace implements Store.
func (m *Memory) Replace(bag Bag) {
	next := bag.Clone()
	m.mu.Lock()
	m.bag = next
	m.mu.Unlock()
	m.subs.notify(next)
}

// Subscribe implements Store.
func (m *Memory) Subscribe(fn func(Bag)) func() {
	return m.subs.add(fn)
}

// External adapts host-managed state (for example block attributes owned by
// an editor runtime) to the Store interface.
type External struct {
	mu     sync.Mutex
	get    func() Bag
	set    func(Bag)
	subs   subscribers
	logger *slog.Logger
}

// NewExternal wraps a getter/setter pair. set receives a new bag on every
// change and must not retain references it intends to mutate.
func NewExternal(get func() Bag, set func(Bag), options ...Option) *External {
	cfg := newConfig(options)
	return &External{get: get, set: set, logger: cfg.logger}
}

// Snapshot implements Store.
func (e *External) Snapshot() Bag {
	if e == nil || e.get == nil {
		return Bag{}
	}
	bag := e.get()
	if bag == nil {
		return Bag{}
	}
	return bag
}

// UpdateValue implements Store.
func (e *External) UpdateValue(id string) func(any) {
	return func(value any) {
		e.mu.Lock()
		current := e.Snapshot()
		if existing, ok := current[id]; ok && reflect.DeepEqual(existing, value) {
			e.mu.Unlock()
			return
		}
		next := current.With(id, value)
		if e.set != nil {
			e.set(next)
		}
		e.mu.Unlock()

		e.logger.Debug("values: external field updated", "field", id)
		e.subs.notify(next)
	}
}

// Replace implements Store.
func (e *External) Replace(bag Bag) {
	next := bag.Clone()
	e.mu.Lock()
	if e.set != nil {
		e.set(next)
	}
	e.mu.Unlock()
	e.subs.notify(next)
}

// Subscribe implements Store.
func (e *External) Subscribe(fn func(Bag)) func() {
	return e.subs.add(fn)
}

// Changed tells subscribers that the host modified its state directly.
func (e *External) Changed() {
	e.subs.notify(e.Snapshot())
}

// Resolve returns external when the host supplied one, else fallback.
func Resolve(external, fallback Store) Store {
	if external != nil && !isNilStore(external) {
		return external
	}
	return fallback
}

func isNilStore(store Store) bool {
	switch typed := store.(type) {
	case *Memory:
		return typed == nil
	case *External:
		return typed == nil
	default:
		return false
	}
}
