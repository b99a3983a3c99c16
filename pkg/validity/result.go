// Package validity models per-field validation results and aggregates them
// for submit gating.
package validity

import (
	"sort"
	"strings"
)

// Result holds the messages of one field. Composite fields carry their
// children's results keyed by child id (groups) or decimal index (repeaters).
type Result struct {
	Messages []string          `json:"messages,omitempty"`
	Children map[string]Result `json:"children,omitempty"`
}

// Messages builds a leaf result, dropping blank and duplicate messages.
func Messages(messages ...string) Result {
	return Result{Messages: normalizeMessages(messages)}
}

// Valid reports whether the result and every nested child hold no messages.
func (r Result) Valid() bool {
	if len(r.Messages) > 0 {
		return false
	}
	for _, child := range r.Children {
		if !child.Valid() {
			return false
		}
	}
	return true
}

// WithChild returns a copy of r with key set to child.
func (r Result) WithChild(key string, child Result) Result {
	out := Result{Messages: r.Messages, Children: make(map[string]Result, len(r.Children)+1)}
	for k, v := range r.Children {
		out.Children[k] = v
	}
	out.Children[key] = child
	return out
}

// Append returns a copy of r with extra messages.
func (r Result) Append(messages ...string) Result {
	combined := append(append([]string(nil), r.Messages...), messages...)
	return Result{Messages: normalizeMessages(combined), Children: r.Children}
}

// Flatten lists non-empty message sets by dotted path below prefix.
func (r Result) Flatten(prefix string) map[string][]string {
	out := make(map[string][]string)
	r.flatten(prefix, out)
	return out
}

func (r Result) flatten(prefix string, out map[string][]string) {
	if len(r.Messages) > 0 {
		out[prefix] = append([]string(nil), r.Messages...)
	}
	keys := make([]string, 0, len(r.Children))
	for key := range r.Children {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		r.Children[key].flatten(path, out)
	}
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
