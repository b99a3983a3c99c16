package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
)

var requestMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// FromOpenAPI builds a Definition from the request body of operationID. The
// definition id defaults to the operation id. Object properties become groups,
// arrays of objects become multi_group repeaters and scalar arrays become
// multi_* repeaters of the scalar type.
func FromOpenAPI(ctx context.Context, raw []byte, operationID string) (Definition, error) {
	if len(raw) == 0 {
		return Definition{}, errors.New("schema: openapi document is empty")
	}
	if strings.TrimSpace(operationID) == "" {
		return Definition{}, errors.New("schema: operation id is required")
	}

	loader := &openapi3.Loader{Context: ctx}
	openapiDoc, err := loader.LoadFromData(raw)
	if err != nil {
		return Definition{}, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if openapiDoc.Paths == nil {
		return Definition{}, errors.New("schema: openapi document does not contain any paths")
	}

	for _, item := range openapiDoc.Paths.Map() {
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if op == nil || op.OperationID != operationID {
				continue
			}
			body := requestSchema(op.RequestBody)
			if body == nil {
				return Definition{}, fmt.Errorf("schema: operation %q has no request body schema", operationID)
			}
			def := Definition{
				ID:      operationID,
				Title:   op.Summary,
				Surface: SurfacePage,
				Fields:  fieldsFromProperties(body),
			}
			if err := def.Validate(); err != nil {
				return Definition{}, err
			}
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: operation %q", ErrNotFound, operationID)
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	content := body.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	for _, mt := range content {
		if mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func fieldsFromProperties(src *openapi3.Schema) []Field {
	if src == nil || len(src.Properties) == 0 {
		return nil
	}
	names := make([]string, 0, len(src.Properties))
	for name := range src.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	required := make(map[string]struct{}, len(src.Required))
	for _, name := range src.Required {
		required[name] = struct{}{}
	}

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		ref := src.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		field := fieldFromSchema(name, ref.Value)
		_, field.Required = required[name]
		fields = append(fields, field)
	}
	return fields
}

func fieldFromSchema(name string, src *openapi3.Schema) Field {
	field := Field{
		ID:          name,
		Title:       src.Title,
		Description: src.Description,
		Default:     src.Default,
	}
	if field.Title == "" {
		field.Title = labelize(name)
	}

	switch firstType(src.Type) {
	case openapi3.TypeObject:
		field.Type = "group"
		field.Items = fieldsFromProperties(src)
	case openapi3.TypeArray:
		var item *openapi3.Schema
		if src.Items != nil {
			item = src.Items.Value
		}
		switch {
		case item == nil:
			field.Type = "multi_text"
		case firstType(item.Type) == openapi3.TypeObject:
			field.Type = "multi_group"
			field.Items = fieldsFromProperties(item)
		case len(item.Enum) > 0:
			field.Type = "multi_select"
			field.setExtra("options", enumOptions(item.Enum))
		default:
			field.Type = "multi_" + scalarType(item)
		}
		if src.MinItems > 0 {
			field.setExtra("min", float64(src.MinItems))
		}
		if src.MaxItems != nil {
			field.setExtra("max", float64(*src.MaxItems))
		}
	default:
		field.Type = scalarType(src)
		if len(src.Enum) > 0 {
			field.setExtra("options", enumOptions(src.Enum))
		}
		if src.Min != nil {
			field.setExtra("min", *src.Min)
		}
		if src.Max != nil {
			field.setExtra("max", *src.Max)
		}
		if src.MaxLength != nil {
			field.setExtra("maxlength", float64(*src.MaxLength))
		}
		if src.Pattern != "" {
			field.setExtra("pattern", src.Pattern)
		}
	}
	return field
}

func scalarType(src *openapi3.Schema) string {
	if len(src.Enum) > 0 {
		return "select"
	}
	switch firstType(src.Type) {
	case openapi3.TypeBoolean:
		return "toggle"
	case openapi3.TypeInteger, openapi3.TypeNumber:
		return "number"
	}
	switch strings.ToLower(src.Format) {
	case "email":
		return "email"
	case "uri", "url":
		return "url"
	case "date":
		return "date"
	case "date-time":
		return "datetime"
	case "time":
		return "time"
	case "password":
		return "password"
	case "color":
		return "color"
	case "textarea", "markdown":
		return "textarea"
	case "html":
		return "wysiwyg"
	default:
		return "text"
	}
}

func firstType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func enumOptions(values []any) []any {
	out := make([]any, 0, len(values))
	for _, value := range values {
		text := stringify(value)
		out = append(out, map[string]any{"value": text, "label": text})
	}
	return out
}

func (f *Field) setExtra(key string, value any) {
	if f.Extra == nil {
		f.Extra = make(map[string]any)
	}
	f.Extra[key] = value
}

func labelize(name string) string {
	var builder strings.Builder
	upperNext := true
	for idx, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.':
			builder.WriteRune(' ')
			upperNext = true
			continue
		case unicode.IsUpper(r) && idx > 0:
			builder.WriteRune(' ')
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
