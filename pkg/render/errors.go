package render

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
)

// ErrorMapping splits a server error payload into per-field results, keyed by
// root field id, and form-level messages.
type ErrorMapping struct {
	Fields map[string]validity.Result
	Form   []string
}

// Field returns the mapped result of a root field.
func (m ErrorMapping) Field(id string) validity.Result {
	return m.Fields[id]
}

// Empty reports whether the mapping carries no messages.
func (m ErrorMapping) Empty() bool {
	return len(m.Fields) == 0 && len(m.Form) == 0
}

// MapErrorPayload maps error keys onto the schema. Keys may be input names
// ("links[0][url]"), dotted paths ("links.0.url") or JSON pointers
// ("/data/links/0/url"). Keys that match no field become form-level errors so
// messages are never lost; a key that only partially matches is attached to
// the deepest field it reaches.
func MapErrorPayload(fields []schema.Field, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{}
	for raw, messages := range payload {
		messages = validity.Messages(messages...).Messages
		if len(messages) == 0 {
			continue
		}
		if isFormLevelKey(raw) {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		path := resolveErrorPath(fields, dropWrapperSegments(parsePathSegments(raw)))
		if len(path) == 0 {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string]validity.Result)
		}
		mapping.Fields[path[0]] = attach(mapping.Fields[path[0]], path[1:], messages)
	}
	mapping.Form = validity.Messages(mapping.Form...).Messages
	return mapping
}

// MergeFormErrors concatenates message lists, trimming and de-duplicating.
func MergeFormErrors(existing []string, extras ...string) []string {
	return validity.Messages(append(append([]string(nil), existing...), extras...)...).Messages
}

func attach(result validity.Result, path []string, messages []string) validity.Result {
	if len(path) == 0 {
		return result.Append(messages...)
	}
	child := attach(result.Children[path[0]], path[1:], messages)
	return result.WithChild(path[0], child)
}

// resolveErrorPath walks segments through the schema and returns the longest
// prefix that addresses a field.
func resolveErrorPath(fields []schema.Field, segments []string) []string {
	var (
		out   []string
		scope = fields
	)
	for idx := 0; idx < len(segments); idx++ {
		field, ok := findField(scope, segments[idx])
		if !ok {
			break
		}
		out = append(out, field.ID)
		switch {
		case schema.IsMulti(field.Type):
			if idx+1 >= len(segments) {
				return out
			}
			if _, err := strconv.Atoi(segments[idx+1]); err != nil {
				return out
			}
			idx++
			out = append(out, segments[idx])
			scope = field.Items
		case len(field.Items) > 0:
			scope = field.Items
		default:
			return out
		}
	}
	return out
}

func findField(fields []schema.Field, id string) (schema.Field, bool) {
	for _, field := range fields {
		if field.ID == id {
			return field, true
		}
	}
	return schema.Field{}, false
}

func parsePathSegments(path string) []string {
	clean := strings.TrimSpace(path)
	for _, prefix := range []string{"#/", "$/", "$."} {
		clean = strings.TrimPrefix(clean, prefix)
	}
	clean = strings.TrimLeft(clean, "#/.$")

	replacer := strings.NewReplacer("[", ".", "]", "", "//", "/")
	clean = strings.Trim(replacer.Replace(clean), "./")
	if clean == "" {
		return nil
	}

	parts := strings.FieldsFunc(clean, func(r rune) bool {
		return r == '.' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(segment, "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		out = append(out, segment)
	}
	return out
}

var wrapperSegments = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
	"values":     {},
}

func dropWrapperSegments(segments []string) []string {
	for len(segments) > 1 {
		if _, ok := wrapperSegments[strings.ToLower(segments[0])]; !ok {
			break
		}
		segments = segments[1:]
	}
	return segments
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", ".", "/", "#", "$", "form", "__all__", "non_field_errors", "non-field-errors":
		return true
	default:
		return false
	}
}
