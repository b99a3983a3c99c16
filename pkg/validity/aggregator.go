package validity

import (
	"sort"
	"sync"
)

// Aggregator collects the latest result of every root field.
type Aggregator struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{results: make(map[string]Result)}
}

// HandleValidityChange returns the callback a field uses to report its
// result. Each call replaces the previous result for id.
func (a *Aggregator) HandleValidityChange(id string) func(Result) {
	return func(result Result) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.results == nil {
			a.results = make(map[string]Result)
		}
		a.results[id] = result
	}
}

// Validate reports whether every collected result is empty, recursively.
func (a *Aggregator) Validate() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, result := range a.results {
		if !result.Valid() {
			return false
		}
	}
	return true
}

// Result returns the last result reported for id.
func (a *Aggregator) Result(id string) (Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	result, ok := a.results[id]
	return result, ok
}

// Snapshot copies the current results map.
func (a *Aggregator) Snapshot() map[string]Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Result, len(a.results))
	for id, result := range a.results {
		out[id] = result
	}
	return out
}

// Errors flattens every result into dotted paths, e.g. "links.0.url".
func (a *Aggregator) Errors() map[string][]string {
	snapshot := a.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string][]string)
	for _, id := range ids {
		for path, messages := range snapshot[id].Flatten(id) {
			out[path] = messages
		}
	}
	return out
}

// Reset forgets every collected result.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.results = make(map[string]Result)
	a.mu.Unlock()
}
