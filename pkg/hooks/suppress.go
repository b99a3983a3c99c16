package hooks

import "strings"

// Suppressed reports whether the named wcf_field_without_* filter asks to drop
// a structural layer for fieldType. Filters receive false and the type name.
func Suppressed(h *Hooks, name, fieldType string) bool {
	return Apply(h, name, false, strings.ToLower(fieldType))
}

// SuppressTypes registers a filter that returns true for the listed types and
// passes every other value through.
func SuppressTypes(h *Hooks, name string, types ...string) func() {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return h.AddFilter(name, func(value any, args ...any) any {
		if len(args) == 0 {
			return value
		}
		fieldType, _ := args[0].(string)
		if _, ok := set[fieldType]; ok {
			return true
		}
		return value
	})
}
