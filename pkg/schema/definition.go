package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Surface kinds a definition can be rendered on.
const (
	SurfacePage      = "page"
	SurfaceTerm      = "term"
	SurfaceBlock     = "block"
	SurfaceVariation = "variation"
)

// Tab labels one tab key of a multi-tab surface.
type Tab struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Definition is the schema feed of one hosting surface.
type Definition struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Surface string  `json:"surface,omitempty"`
	Tabs    []Tab   `json:"tabs,omitempty"`
	Fields  []Field `json:"items"`
}

// TabKeys returns the tab ids in declaration order.
func (d Definition) TabKeys() []string {
	keys := make([]string, 0, len(d.Tabs))
	for _, tab := range d.Tabs {
		keys = append(keys, tab.ID)
	}
	return keys
}

// Validate checks id uniqueness per scope and the presence of id/type on every
// field. Nested scopes (group items) are checked independently.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("schema: definition id is required")
	}
	return validateScope(d.Fields, d.ID)
}

func validateScope(fields []Field, scope string) error {
	seen := make(map[string]struct{}, len(fields))
	for idx, field := range fields {
		id := strings.TrimSpace(field.ID)
		if id == "" {
			return fmt.Errorf("schema: %s: field %d has no id", scope, idx)
		}
		if strings.TrimSpace(field.Type) == "" {
			return fmt.Errorf("schema: %s: field %q has no type", scope, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("schema: %s: duplicate field id %q", scope, id)
		}
		seen[id] = struct{}{}
		if len(field.Items) > 0 {
			if err := validateScope(field.Items, scope+"."+id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup finds a field by dotted id path (e.g. "group.child").
func Lookup(fields []Field, path string) (Field, bool) {
	parts := strings.Split(path, ".")
	current := fields
	for idx, part := range parts {
		found := false
		for _, field := range current {
			if field.ID != part {
				continue
			}
			if idx == len(parts)-1 {
				return field, true
			}
			current = field.Items
			found = true
			break
		}
		if !found {
			return Field{}, false
		}
	}
	return Field{}, false
}
