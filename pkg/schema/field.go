package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field is the static configuration of one field. Keys that are not part of
// the common core are preserved in Extra and read through the typed accessors
// below.
type Field struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Default     any        `json:"default,omitempty"`
	Conditions  Conditions `json:"conditions,omitempty"`
	Rule        string     `json:"rule,omitempty"`
	Tab         string     `json:"tab,omitempty"`
	Items       []Field    `json:"items,omitempty"`

	Extra map[string]any `json:"-"`
}

// Choice is one selectable option of a choice field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var coreKeys = map[string]struct{}{
	"id": {}, "type": {}, "title": {}, "description": {}, "required": {},
	"default": {}, "conditions": {}, "rule": {}, "tab": {}, "items": {},
}

type fieldAlias Field

// UnmarshalJSON decodes the core keys and keeps everything else in Extra.
func (f *Field) UnmarshalJSON(data []byte) error {
	var core fieldAlias
	if err := json.Unmarshal(data, &core); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range coreKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		core.Extra = raw
	}
	*f = Field(core)
	return nil
}

// MarshalJSON flattens Extra back next to the core keys.
func (f Field) MarshalJSON() ([]byte, error) {
	core, err := json.Marshal(fieldAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return core, nil
	}
	merged := make(map[string]any, len(f.Extra)+8)
	for key, value := range f.Extra {
		if _, reserved := coreKeys[key]; reserved {
			continue
		}
		merged[key] = value
	}
	var coreMap map[string]any
	if err := json.Unmarshal(core, &coreMap); err != nil {
		return nil, err
	}
	for key, value := range coreMap {
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Option returns a raw type-specific option.
func (f Field) Option(key string) (any, bool) {
	if f.Extra == nil {
		return nil, false
	}
	value, ok := f.Extra[key]
	return value, ok
}

// String returns a string option, or "" when absent.
func (f Field) String(key string) string {
	value, ok := f.Option(key)
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

// Bool reports a boolean option. Strings such as "true" or "1" count.
func (f Field) Bool(key string) bool {
	value, ok := f.Option(key)
	if !ok {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	case float64:
		return typed != 0
	case int:
		return typed != 0
	default:
		return false
	}
}

// Float returns a numeric option.
func (f Field) Float(key string) (float64, bool) {
	value, ok := f.Option(key)
	if !ok {
		return 0, false
	}
	return ToFloat(value)
}

// Map returns a nested option map.
func (f Field) Map(key string) map[string]any {
	value, ok := f.Option(key)
	if !ok {
		return nil
	}
	typed, _ := value.(map[string]any)
	return typed
}

// Choices returns the selectable options of a choice field. It accepts a list
// of {value,label} objects, a list of plain strings, or a value->label map
// (sorted by value for deterministic output).
func (f Field) Choices() []Choice {
	value, ok := f.Option("options")
	if !ok || value == nil {
		return nil
	}
	switch typed := value.(type) {
	case []Choice:
		return append([]Choice(nil), typed...)
	case []any:
		out := make([]Choice, 0, len(typed))
		for _, entry := range typed {
			switch item := entry.(type) {
			case map[string]any:
				val := stringify(item["value"])
				label := stringify(item["label"])
				if label == "" {
					label = val
				}
				out = append(out, Choice{Value: val, Label: label})
			default:
				val := stringify(item)
				out = append(out, Choice{Value: val, Label: val})
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := make([]Choice, 0, len(keys))
		for _, key := range keys {
			out = append(out, Choice{Value: key, Label: stringify(typed[key])})
		}
		return out
	default:
		return nil
	}
}

// Bounds returns the min/max options when present.
func (f Field) Bounds() (minimum, maximum *float64) {
	if v, ok := f.Float("min"); ok {
		minimum = &v
	}
	if v, ok := f.Float("max"); ok {
		maximum = &v
	}
	return minimum, maximum
}

// ItemType returns the repeated child type of a multi_* field.
func (f Field) ItemType() string {
	if !IsMulti(f.Type) {
		return ""
	}
	return strings.TrimPrefix(f.Type, multiPrefix)
}

// OptionsSource names the remote options source for searchable selects along
// with the filter arguments forwarded to it.
func (f Field) OptionsSource() (string, map[string]any, bool) {
	source := strings.TrimSpace(f.String("options_source"))
	if source == "" {
		return "", nil, false
	}
	return source, f.Map("options_args"), true
}

const multiPrefix = "multi_"

// IsMulti reports whether a type repeats a child type over an array value.
func IsMulti(fieldType string) bool {
	return strings.HasPrefix(fieldType, multiPrefix) && len(fieldType) > len(multiPrefix)
}

// ToFloat coerces JSON-ish numerics (and numeric strings) to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
