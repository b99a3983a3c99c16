package render

import (
	"strings"

	"github.com/goliatone/go-customfields/pkg/schema"
)

// FieldSubset selects root fields for partial renders, e.g. re-rendering the
// fields that depend on a changed value. Empty criteria match everything;
// non-empty criteria must all match.
type FieldSubset struct {
	IDs   []string
	Tabs  []string
	Types []string
}

// Empty reports whether the subset has no criteria.
func (s FieldSubset) Empty() bool {
	return len(s.IDs) == 0 && len(s.Tabs) == 0 && len(s.Types) == 0
}

// ApplySubset returns the fields matching subset, preserving order.
func ApplySubset(fields []schema.Field, subset FieldSubset) []schema.Field {
	if subset.Empty() {
		return fields
	}
	ids := tokenSet(subset.IDs, false)
	tabs := tokenSet(subset.Tabs, true)
	types := tokenSet(subset.Types, true)

	out := make([]schema.Field, 0, len(fields))
	for _, field := range fields {
		if !matchToken(ids, field.ID, false) || !matchToken(tabs, field.Tab, true) || !matchToken(types, field.Type, true) {
			continue
		}
		out = append(out, field)
	}
	return out
}

// Dependents returns the ids of root fields whose conditions reference any of
// changed. Rule strings are not inspected.
func Dependents(fields []schema.Field, changed ...string) []string {
	if len(changed) == 0 {
		return nil
	}
	set := tokenSet(changed, false)
	var out []string
	for _, field := range fields {
		for _, ref := range field.Conditions.Fields() {
			root, _, _ := strings.Cut(strings.TrimLeft(ref, "#"), ".")
			root, _, _ = strings.Cut(root, "[")
			if _, ok := set[root]; ok {
				out = append(out, field.ID)
				break
			}
		}
	}
	return out
}

// ParseTokenList splits a comma or whitespace separated list.
func ParseTokenList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func tokenSet(values []string, fold bool) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		if token := normaliseToken(value, fold); token != "" {
			out[token] = struct{}{}
		}
	}
	return out
}

func matchToken(set map[string]struct{}, value string, fold bool) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[normaliseToken(value, fold)]
	return ok
}

func normaliseToken(value string, fold bool) string {
	value = strings.TrimSpace(value)
	if fold {
		return strings.ToLower(value)
	}
	return value
}
