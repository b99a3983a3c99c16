package render

import (
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
)

// HiddenField is a hidden input emitted next to the field mirrors, e.g. a
// CSRF token or the id of the definition being submitted.
type HiddenField struct {
	Name  string
	Value string
}

// Hidden returns a HiddenField for an arbitrary name/value pair.
func Hidden(name string, value any) HiddenField {
	return HiddenField{
		Name:  strings.TrimSpace(name),
		Value: fmt.Sprint(value),
	}
}

// CSRFToken carries a request forgery token under the backend's input name.
func CSRFToken(name, token string) HiddenField {
	return Hidden(name, token)
}

// DefinitionField names the definition a submission belongs to.
const DefinitionField = "_cf_definition"

// DefinitionID returns the hidden input identifying the submitted definition.
func DefinitionID(id string) HiddenField {
	return Hidden(DefinitionField, id)
}

// MergeHiddenFields returns a copy of base with fields applied. Empty names
// are ignored; later fields win.
func MergeHiddenFields(base map[string]string, fields ...HiddenField) map[string]string {
	out := make(map[string]string, len(base)+len(fields))
	for key, value := range base {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = value
		}
	}
	for _, field := range fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			out[name] = field.Value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortedHiddenFields orders fields by name for deterministic output.
func SortedHiddenFields(fields map[string]string) []HiddenField {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]HiddenField, 0, len(names))
	for _, name := range names {
		out = append(out, HiddenField{Name: strings.TrimSpace(name), Value: fields[name]})
	}
	return out
}

// WriteHiddenFields writes one hidden input per field.
func WriteHiddenFields(w io.Writer, fields []HiddenField) error {
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, `<input type="hidden" name="%s" value="%s">`,
			html.EscapeString(field.Name), html.EscapeString(field.Value)); err != nil {
			return err
		}
	}
	return nil
}
