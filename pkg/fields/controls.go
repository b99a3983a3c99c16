package fields

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
)

var richText = bluemonday.UGCPolicy()

// Sanitize strips unsafe markup from author-supplied rich text.
func Sanitize(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	return richText.Sanitize(content)
}

type attr struct {
	name  string
	value string
	flag  bool
}

func (a attr) data() map[string]any {
	return map[string]any{"name": a.name, "value": a.value, "flag": a.flag}
}

// controlData is the payload shared by every control template.
func controlData(props registry.Props, extra ...attr) map[string]any {
	field := props.Field
	attrs := []attr{
		{name: "id", value: props.HTMLID},
		{name: "name", value: props.Name},
	}
	if field.Required {
		attrs = append(attrs, attr{name: "required", flag: true})
	}
	if props.Disabled {
		attrs = append(attrs, attr{name: "disabled", flag: true})
	}
	if field.Bool("readonly") {
		attrs = append(attrs, attr{name: "readonly", flag: true})
	}
	if placeholder := field.String("placeholder"); placeholder != "" {
		attrs = append(attrs, attr{name: "placeholder", value: placeholder})
	}
	if len(props.Validity.Messages) > 0 {
		attrs = append(attrs,
			attr{name: "aria-invalid", value: "true"},
			attr{name: "aria-describedby", value: props.HTMLID + "-errors"},
		)
	}
	attrs = append(attrs, extra...)

	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].name < attrs[j].name })
	list := make([]map[string]any, 0, len(attrs))
	for _, a := range attrs {
		if a.name == "" || (!a.flag && a.value == "" && a.name != "name") {
			continue
		}
		list = append(list, a.data())
	}

	return map[string]any{
		"type":     field.Type,
		"id":       props.HTMLID,
		"name":     props.Name,
		"disabled": props.Disabled,
		"required": field.Required,
		"attrs":    list,
	}
}

func renderTemplate(buf *bytes.Buffer, props registry.Props, name string, data map[string]any) error {
	if props.Template == nil {
		return fmt.Errorf("fields: template renderer not configured for %q", name)
	}
	if override := strings.TrimSpace(props.Field.String("template")); override != "" {
		name = override
	}
	if _, err := props.Template.RenderTemplate(name, data, buf); err != nil {
		return fmt.Errorf("fields: render template %q: %w", name, err)
	}
	return nil
}

var inputTypes = map[string]string{
	TypeDatetime:   "datetime-local",
	TypeAttachment: "number",
}

func inputRenderer(buf *bytes.Buffer, props registry.Props) error {
	field := props.Field
	var extra []attr
	switch field.Type {
	case TypeNumber, TypeRange, TypeDate, TypeDatetime, TypeTime:
		extra = append(extra,
			attr{name: "min", value: field.String("min")},
			attr{name: "max", value: field.String("max")},
			attr{name: "step", value: field.String("step")},
		)
	case TypeAttachment:
		extra = append(extra,
			attr{name: "min", value: "0"},
			attr{name: "step", value: "1"},
			attr{name: "data-attachment-type", value: field.String("attachment_type")},
		)
	default:
		extra = append(extra,
			attr{name: "maxlength", value: field.String("maxlength")},
			attr{name: "pattern", value: field.String("pattern")},
		)
	}
	data := controlData(props, extra...)
	inputType := field.Type
	if mapped, ok := inputTypes[field.Type]; ok {
		inputType = mapped
	}
	data["input_type"] = inputType
	data["value"] = scalarString(props.Value)
	return renderTemplate(buf, props, "input", data)
}

func textareaRenderer(buf *bytes.Buffer, props registry.Props) error {
	field := props.Field
	extra := []attr{
		{name: "rows", value: field.String("rows")},
		{name: "maxlength", value: field.String("maxlength")},
	}
	value := scalarString(props.Value)
	switch field.Type {
	case TypeCode:
		extra = append(extra, attr{name: "data-language", value: field.String("language")}, attr{name: "spellcheck", value: "false"})
	case TypeWysiwyg:
		extra = append(extra, attr{name: "data-wysiwyg", flag: true})
		value = Sanitize(value)
	}
	data := controlData(props, extra...)
	data["value"] = value
	return renderTemplate(buf, props, "textarea", data)
}

func selectRenderer(buf *bytes.Buffer, props registry.Props) error {
	multiple := props.Field.Type == TypeMultiSelect
	data := controlData(props)
	if multiple {
		name := props.Name + "[]"
		data["name"] = name
		data["attrs"] = replaceAttr(data["attrs"].([]map[string]any), "name", name)
	}
	data["multiple"] = multiple
	data["placeholder"] = props.Field.String("placeholder")
	if source, _, ok := props.Field.OptionsSource(); ok {
		data["source"] = source
	}
	data["choices"] = choiceData(props, multiple)
	if props.ChoicesErr != nil {
		data["error"] = props.T("Error loading options")
	}
	return renderTemplate(buf, props, "select", data)
}

func radioRenderer(buf *bytes.Buffer, props registry.Props) error {
	data := controlData(props)
	data["choices"] = choiceData(props, false)
	return renderTemplate(buf, props, "radio", data)
}

func multiCheckboxRenderer(buf *bytes.Buffer, props registry.Props) error {
	data := controlData(props)
	data["name"] = props.Name + "[]"
	data["choices"] = choiceData(props, true)
	return renderTemplate(buf, props, "multi_checkbox", data)
}

func checkboxRenderer(buf *bytes.Buffer, props registry.Props) error {
	data := controlData(props)
	data["checked"] = toBool(props.Value)
	data["text"] = props.Field.String("label")
	return renderTemplate(buf, props, "checkbox", data)
}

func linkRenderer(buf *bytes.Buffer, props registry.Props) error {
	link, _ := normalizeLink(props.Value, props.Field).(map[string]any)
	data := controlData(props)
	data["url"] = scalarString(link["url"])
	data["label"] = scalarString(link["label"])
	data["blank"] = link["target"] == "_blank"
	data["url_placeholder"] = props.T("URL")
	data["label_placeholder"] = props.T("Link text")
	data["new_tab"] = props.T("Open in a new tab")
	return renderTemplate(buf, props, "link", data)
}

func htmlRenderer(buf *bytes.Buffer, props registry.Props) error {
	data := controlData(props)
	data["content"] = Sanitize(props.Field.String("content"))
	return renderTemplate(buf, props, "html", data)
}

func titleRenderer(buf *bytes.Buffer, props registry.Props) error {
	level := 2
	if v, ok := props.Field.Float("level"); ok && v >= 1 && v <= 6 {
		level = int(v)
	}
	data := controlData(props)
	data["level"] = level
	data["title"] = Sanitize(props.Field.Title)
	return renderTemplate(buf, props, "title", data)
}

// choiceData lists the options with their selection state. A current value
// missing from the list is kept as its own option so a submit round-trips it.
func choiceData(props registry.Props, multiple bool) []map[string]any {
	choices := props.Choices
	if choices == nil {
		choices = props.Field.Choices()
	}
	selected := map[string]struct{}{}
	var order []string
	if multiple {
		for _, value := range normalizeStrings(props.Value, props.Field).([]any) {
			key := scalarString(value)
			selected[key] = struct{}{}
			order = append(order, key)
		}
	} else if value := scalarString(props.Value); value != "" {
		selected[value] = struct{}{}
		order = append(order, value)
	}

	out := make([]map[string]any, 0, len(choices)+len(order))
	known := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		known[choice.Value] = struct{}{}
	}
	for _, value := range order {
		if _, ok := known[value]; !ok {
			out = append(out, map[string]any{"value": value, "label": value, "selected": true})
		}
	}
	for _, choice := range choices {
		_, isSelected := selected[choice.Value]
		out = append(out, map[string]any{"value": choice.Value, "label": choice.Label, "selected": isSelected})
	}
	return out
}

func replaceAttr(list []map[string]any, name, value string) []map[string]any {
	out := make([]map[string]any, len(list))
	for idx, item := range list {
		if item["name"] == name {
			item = map[string]any{"name": name, "value": value, "flag": false}
		}
		out[idx] = item
	}
	return out
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		if f, ok := schema.ToFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	case nil:
		return false
	default:
		f, ok := schema.ToFloat(v)
		return ok && f != 0
	}
}
