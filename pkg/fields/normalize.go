package fields

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

var normalizers map[string]registry.Normalizer

func init() {
	normalizers = map[string]registry.Normalizer{
		TypeNumber:        normalizeNumber,
		TypeRange:         normalizeNumber,
		TypeAttachment:    normalizeNumber,
		TypeWysiwyg:       normalizeHTML,
		TypeMultiSelect:   normalizeStrings,
		TypeMultiCheckbox: normalizeStrings,
		TypeCheckbox:      normalizeBool,
		TypeToggle:        normalizeBool,
		TypeLink:          normalizeLink,
		TypeGroup:         normalizeGroup,
		TypeHTML:          normalizeStatic,
		TypeTitle:         normalizeStatic,
	}
	for _, name := range []string{
		TypeText, TypeEmail, TypeURL, TypeTel, TypePassword, TypeColor, TypeDate, TypeDatetime,
		TypeTime, TypeHidden, TypeTextarea, TypeCode, TypeSelect, TypeRadio, TypePost, TypeTerm,
	} {
		normalizers[name] = normalizeString
	}
}

// Normalize coerces raw into the canonical shape of fieldType: absent values
// become the type's empty value and legacy shapes are upgraded. Unknown
// types are returned as a deep copy.
func Normalize(fieldType string, raw any, field schema.Field) any {
	if fn, ok := normalizers[fieldType]; ok {
		return fn(raw, field)
	}
	if schema.IsMulti(fieldType) {
		field.Type = fieldType
		return normalizeRepeater(raw, field)
	}
	return values.DeepCopy(raw)
}

// NormalizeBag normalizes the value of every field of the scope. Absent
// values take the field default first. Keys the schema does not know are kept.
func NormalizeBag(fields []schema.Field, bag values.Bag) values.Bag {
	return NormalizeBagWith(nil, fields, bag)
}

// NormalizeBagWith is NormalizeBag honouring normalizers registered on reg
// for custom types.
func NormalizeBagWith(reg *registry.Registry, fields []schema.Field, bag values.Bag) values.Bag {
	out := normalizeScope(reg, fields, map[string]any(bag))
	return values.Bag(out)
}

func normalizeScope(reg *registry.Registry, fields []schema.Field, current map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(fields))
	for key, value := range current {
		out[key] = values.DeepCopy(value)
	}
	for _, field := range fields {
		if Static(field.Type) {
			continue
		}
		raw, ok := current[field.ID]
		if !ok || raw == nil {
			raw = values.DeepCopy(field.Default)
		}
		out[field.ID] = normalizeWith(reg, field, raw)
	}
	return out
}

func normalizeWith(reg *registry.Registry, field schema.Field, raw any) any {
	if reg != nil {
		if caps := reg.Resolve(field.Type); caps.Normalize != nil {
			return caps.Normalize(raw, field)
		}
	}
	return Normalize(field.Type, raw, field)
}

func normalizeString(value any, _ schema.Field) any {
	return scalarString(value)
}

func normalizeHTML(value any, _ schema.Field) any {
	return Sanitize(scalarString(value))
}

func normalizeNumber(value any, _ schema.Field) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		if f, ok := schema.ToFloat(trimmed); ok {
			return f
		}
		return trimmed
	default:
		if f, ok := schema.ToFloat(v); ok {
			return f
		}
		return nil
	}
}

func normalizeBool(value any, _ schema.Field) any {
	return toBool(value)
}

func normalizeStatic(any, schema.Field) any {
	return nil
}

func normalizeStrings(value any, _ schema.Field) any {
	out := make([]any, 0)
	for _, item := range asList(value) {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeLink(value any, _ schema.Field) any {
	link := map[string]any{"label": "", "url": "", "target": "", "post": nil}
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "{") {
			var decoded map[string]any
			if json.Unmarshal([]byte(trimmed), &decoded) == nil {
				return normalizeLink(decoded, schema.Field{})
			}
		}
		link["url"] = trimmed
	case map[string]any:
		link["label"] = scalarString(v["label"])
		link["url"] = strings.TrimSpace(scalarString(v["url"]))
		link["target"] = scalarString(v["target"])
		if post, ok := schema.ToFloat(v["post"]); ok {
			link["post"] = post
		}
	}
	return link
}

func normalizeGroup(value any, field schema.Field) any {
	return normalizeGroupWith(nil, value, field)
}

// normalizeGroupWith normalizes the children of a group, resolving their
// normalizers on reg when set.
func normalizeGroupWith(reg *registry.Registry, value any, field schema.Field) any {
	var current map[string]any
	switch v := value.(type) {
	case map[string]any:
		current = v
	case values.Bag:
		current = map[string]any(v)
	case string:
		if err := json.Unmarshal([]byte(v), &current); err != nil {
			current = nil
		}
	}
	if current == nil {
		current = map[string]any{}
	}
	return normalizeScope(reg, field.Items, current)
}

func normalizeRepeater(value any, field schema.Field) any {
	return normalizeRepeaterWith(nil, value, field)
}

func normalizeRepeaterWith(reg *registry.Registry, value any, field schema.Field) any {
	list := asList(value)
	out := make([]any, 0, len(list))
	for idx, item := range list {
		out = append(out, normalizeWith(reg, ItemField(field, idx), item))
	}
	return out
}

// asList accepts arrays, JSON array strings and single scalars.
func asList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, item)
		}
		return out
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []any
			if json.Unmarshal([]byte(trimmed), &decoded) == nil {
				return decoded
			}
		}
		return []any{v}
	default:
		return []any{v}
	}
}
