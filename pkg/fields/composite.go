package fields

import (
	"bytes"
	"fmt"
	"html"
	"strconv"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
)

func groupRenderer(buf *bytes.Buffer, props registry.Props) error {
	current, _ := normalizeGroup(props.Value, props.Field).(map[string]any)

	buf.WriteString(`<fieldset class="cf-group"`)
	writeAttr(buf, "id", props.HTMLID)
	buf.WriteString(`>`)
	if props.RenderChild == nil {
		buf.WriteString(`</fieldset>`)
		return nil
	}
	for _, child := range props.Field.Items {
		err := props.RenderChild(buf, registry.Child{
			Field:    child,
			Key:      child.ID,
			Value:    current[child.ID],
			OnChange: groupSetter(props, current, child.ID),
		})
		if err != nil {
			return err
		}
	}
	buf.WriteString(`</fieldset>`)
	return nil
}

// groupSetter rebuilds the whole group value around one changed child.
func groupSetter(props registry.Props, current map[string]any, key string) func(any) {
	return func(value any) {
		if props.OnChange == nil {
			return
		}
		next := make(map[string]any, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[key] = value
		props.OnChange(next)
	}
}

// ItemField is the schema of one repeated item of a multi_* field.
func ItemField(field schema.Field, index int) schema.Field {
	item := schema.Field{
		ID:    strconv.Itoa(index),
		Type:  field.ItemType(),
		Items: field.Items,
	}
	if len(field.Extra) > 0 {
		item.Extra = make(map[string]any, len(field.Extra))
		for key, value := range field.Extra {
			switch key {
			case "min", "max":
				continue
			}
			item.Extra[key] = value
		}
	}
	return item
}

func repeaterRenderer(buf *bytes.Buffer, props registry.Props) error {
	field := props.Field
	items, _ := normalizeRepeater(props.Value, field).([]any)
	itemType := field.ItemType()
	minimum, maximum := itemBounds(field)

	buf.WriteString(`<div class="cf-repeater cf-repeater--`)
	buf.WriteString(html.EscapeString(itemType))
	buf.WriteString(`"`)
	writeAttr(buf, "id", props.HTMLID)
	if minimum > 0 {
		writeAttr(buf, "data-min", strconv.Itoa(minimum))
	}
	if maximum > 0 {
		writeAttr(buf, "data-max", strconv.Itoa(maximum))
	}
	buf.WriteString(`><ol class="cf-repeater__items">`)

	for idx, item := range items {
		buf.WriteString(`<li class="cf-repeater__item" data-index="`)
		buf.WriteString(strconv.Itoa(idx))
		buf.WriteString(`">`)
		itemField := ItemField(field, idx)
		if title := Title(itemField, item); title != "" {
			buf.WriteString(`<span class="cf-repeater__title">`)
			buf.WriteString(html.EscapeString(title))
			buf.WriteString(`</span>`)
		}
		if props.RenderChild != nil {
			err := props.RenderChild(buf, registry.Child{
				Field:    itemField,
				Key:      strconv.Itoa(idx),
				Value:    item,
				OnChange: repeaterSetter(props, items, idx),
				Options:  registry.RenderOptions{NoLabel: true},
			})
			if err != nil {
				return fmt.Errorf("fields: render item %d of %q: %w", idx, field.ID, err)
			}
		}
		buf.WriteString(`</li>`)
	}

	buf.WriteString(`</ol><button type="button" class="cf-repeater__add" data-add-item`)
	if props.Disabled || (maximum > 0 && len(items) >= maximum) {
		buf.WriteString(` disabled`)
	}
	buf.WriteString(`>`)
	buf.WriteString(html.EscapeString(props.T("Add item")))
	buf.WriteString(`</button></div>`)
	return nil
}

func repeaterSetter(props registry.Props, current []any, index int) func(any) {
	return func(value any) {
		if props.OnChange == nil {
			return
		}
		next := append([]any(nil), current...)
		for len(next) <= index {
			next = append(next, nil)
		}
		next[index] = value
		props.OnChange(next)
	}
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	buf.WriteString(html.EscapeString(value))
	buf.WriteByte('"')
}

// itemBounds reads the min/max item counts of a repeater.
func itemBounds(field schema.Field) (minimum, maximum int) {
	if v, ok := field.Float("min"); ok && v > 0 {
		minimum = int(v)
	}
	if v, ok := field.Float("max"); ok && v > 0 {
		maximum = int(v)
	}
	return minimum, maximum
}
