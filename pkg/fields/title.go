package fields

import (
	"strings"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
)

var titlers map[string]registry.Titler

func init() {
	titlers = map[string]registry.Titler{
		TypeSelect:        titleChoice,
		TypeRadio:         titleChoice,
		TypePost:          titleChoice,
		TypeTerm:          titleChoice,
		TypeMultiSelect:   titleChoices,
		TypeMultiCheckbox: titleChoices,
		TypeLink:          titleLink,
		TypeGroup:         titleGroup,
	}
	for _, name := range []string{
		TypeText, TypeEmail, TypeURL, TypeTel, TypeDate, TypeDatetime, TypeTime,
		TypeNumber, TypeRange, TypeAttachment, TypeTextarea,
	} {
		titlers[name] = titleString
	}
}

// Title extracts a short label for value, used for collapsed repeater rows.
func Title(field schema.Field, value any) string {
	fn, ok := titlers[field.Type]
	if !ok {
		return ""
	}
	title := strings.TrimSpace(fn(value, field))
	if runes := []rune(title); len(runes) > 80 {
		title = strings.TrimSpace(string(runes[:77])) + "..."
	}
	return title
}

func titleString(value any, _ schema.Field) string {
	return scalarString(value)
}

func titleChoice(value any, field schema.Field) string {
	current := scalarString(value)
	for _, choice := range field.Choices() {
		if choice.Value == current {
			return choice.Label
		}
	}
	return current
}

func titleChoices(value any, field schema.Field) string {
	items, _ := normalizeStrings(value, field).([]any)
	labels := make([]string, 0, len(items))
	for _, item := range items {
		labels = append(labels, titleChoice(item, field))
	}
	return strings.Join(labels, ", ")
}

func titleLink(value any, field schema.Field) string {
	link, _ := normalizeLink(value, field).(map[string]any)
	if label := scalarString(link["label"]); label != "" {
		return label
	}
	return scalarString(link["url"])
}

func titleGroup(value any, field schema.Field) string {
	current, _ := value.(map[string]any)
	for _, child := range field.Items {
		if title := Title(child, current[child.ID]); title != "" {
			return title
		}
	}
	return ""
}
