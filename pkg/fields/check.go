package fields

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
)

// Validity messages. They double as translation keys.
const (
	MsgRequired    = "This field is required."
	MsgEmail       = "This field must be a valid email address."
	MsgURL         = "This field must be a valid URL."
	MsgNumber      = "This field must be a number."
	MsgMinValue    = "The value must be at least %s."
	MsgMaxValue    = "The value must be at most %s."
	MsgMaxLength   = "This field must be at most %d characters."
	MsgMinLength   = "This field must be at least %d characters."
	MsgPattern     = "This field does not match the required format."
	MsgDate        = "This field must be a valid date."
	MsgTime        = "This field must be a valid time."
	MsgColor       = "This field must be a valid color."
	MsgMinItems    = "Add at least %d items."
	MsgMaxItems    = "Add at most %d items."
	MsgMinSelected = "Select at least %d options."
	MsgMaxSelected = "Select at most %d options."
	MsgNotAllowed  = "Selected option is not allowed."
)

// Check runs the built-in checker of field.Type. Types without a checker are
// always valid.
func Check(field schema.Field, value any) validity.Result {
	switch field.Type {
	case TypeNumber, TypeRange, TypeAttachment:
		return checkNumber(value, field)
	case TypeSelect, TypeRadio, TypePost, TypeTerm:
		return checkChoice(value, field)
	case TypeMultiSelect, TypeMultiCheckbox:
		return checkChoices(value, field)
	case TypeCheckbox, TypeToggle:
		return checkBool(value, field)
	case TypeLink:
		return checkLink(value, field)
	case TypeGroup:
		return checkGroup(value, field)
	case TypeHTML, TypeTitle:
		return validity.Result{}
	}
	if schema.IsMulti(field.Type) {
		return checkRepeater(value, field)
	}
	if _, ok := normalizers[field.Type]; ok {
		return checkText(value, field)
	}
	return validity.Result{}
}

func required(field schema.Field) validity.Result {
	if field.Required {
		return validity.Messages(MsgRequired)
	}
	return validity.Result{}
}

var dateLayouts = map[string][]string{
	TypeDate:     {"2006-01-02"},
	TypeDatetime: {"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339, "2006-01-02 15:04:05"},
	TypeTime:     {"15:04", "15:04:05"},
}

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func checkText(value any, field schema.Field) validity.Result {
	text := strings.TrimSpace(scalarString(value))
	if text == "" {
		return required(field)
	}

	var messages []string
	switch field.Type {
	case TypeEmail:
		if !validEmail(text) {
			messages = append(messages, MsgEmail)
		}
	case TypeURL:
		if !validURL(text, false) {
			messages = append(messages, MsgURL)
		}
	case TypeDate, TypeDatetime:
		if !matchesLayout(text, dateLayouts[field.Type]) {
			messages = append(messages, MsgDate)
		}
	case TypeTime:
		if !matchesLayout(text, dateLayouts[TypeTime]) {
			messages = append(messages, MsgTime)
		}
	case TypeColor:
		if !colorPattern.MatchString(text) {
			messages = append(messages, MsgColor)
		}
	}

	length := utf8.RuneCountInString(text)
	if limit, ok := field.Float("maxlength"); ok && limit > 0 && length > int(limit) {
		messages = append(messages, fmt.Sprintf(MsgMaxLength, int(limit)))
	}
	if limit, ok := field.Float("minlength"); ok && limit > 0 && length < int(limit) {
		messages = append(messages, fmt.Sprintf(MsgMinLength, int(limit)))
	}
	if pattern := field.String("pattern"); pattern != "" {
		if re, err := compilePattern(pattern); err == nil && !re.MatchString(text) {
			messages = append(messages, MsgPattern)
		}
	}
	return validity.Messages(messages...)
}

func checkNumber(value any, field schema.Field) validity.Result {
	switch v := value.(type) {
	case nil:
		return required(field)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return required(field)
		}
		if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
			return validity.Messages(MsgNumber)
		}
	}
	number, ok := schema.ToFloat(value)
	if !ok {
		return validity.Messages(MsgNumber)
	}

	var messages []string
	minimum, maximum := field.Bounds()
	if minimum != nil && number < *minimum {
		messages = append(messages, fmt.Sprintf(MsgMinValue, formatNumber(*minimum)))
	}
	if maximum != nil && number > *maximum {
		messages = append(messages, fmt.Sprintf(MsgMaxValue, formatNumber(*maximum)))
	}
	return validity.Messages(messages...)
}

func checkChoice(value any, field schema.Field) validity.Result {
	current := scalarString(value)
	if current == "" {
		return required(field)
	}
	if !allowed(field, current) {
		return validity.Messages(MsgNotAllowed)
	}
	return validity.Result{}
}

func checkChoices(value any, field schema.Field) validity.Result {
	items, _ := normalizeStrings(value, field).([]any)
	if len(items) == 0 {
		return required(field)
	}
	var messages []string
	for _, item := range items {
		if !allowed(field, scalarString(item)) {
			messages = append(messages, MsgNotAllowed)
			break
		}
	}
	minimum, maximum := itemBounds(field)
	if minimum > 0 && len(items) < minimum {
		messages = append(messages, fmt.Sprintf(MsgMinSelected, minimum))
	}
	if maximum > 0 && len(items) > maximum {
		messages = append(messages, fmt.Sprintf(MsgMaxSelected, maximum))
	}
	return validity.Messages(messages...)
}

// allowed reports whether value is one of the static options. Remote
// sources and option-less fields accept anything.
func allowed(field schema.Field, value string) bool {
	if _, _, remote := field.OptionsSource(); remote {
		return true
	}
	choices := field.Choices()
	if len(choices) == 0 {
		return true
	}
	for _, choice := range choices {
		if choice.Value == value {
			return true
		}
	}
	return false
}

func checkBool(value any, field schema.Field) validity.Result {
	if !toBool(value) {
		return required(field)
	}
	return validity.Result{}
}

func checkLink(value any, field schema.Field) validity.Result {
	link, _ := normalizeLink(value, field).(map[string]any)
	target := scalarString(link["url"])
	if target == "" {
		return required(field)
	}
	if !validURL(target, true) {
		return validity.Messages(MsgURL)
	}
	return validity.Result{}
}

func checkGroup(value any, field schema.Field) validity.Result {
	current, _ := value.(map[string]any)
	for _, child := range field.Items {
		if !blank(current[child.ID]) {
			return validity.Result{}
		}
	}
	return required(field)
}

func checkRepeater(value any, field schema.Field) validity.Result {
	items := asList(value)
	if len(items) == 0 {
		return required(field)
	}
	var messages []string
	minimum, maximum := itemBounds(field)
	if minimum > 0 && len(items) < minimum {
		messages = append(messages, fmt.Sprintf(MsgMinItems, minimum))
	}
	if maximum > 0 && len(items) > maximum {
		messages = append(messages, fmt.Sprintf(MsgMaxItems, maximum))
	}
	return validity.Messages(messages...)
}

func validEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value && addr.Name == ""
}

func validURL(value string, allowRelative bool) bool {
	if allowRelative && (strings.HasPrefix(value, "/") || strings.HasPrefix(value, "#")) {
		return true
	}
	parsed, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return parsed.Host != ""
	case "mailto", "tel":
		return parsed.Opaque != "" || parsed.Path != ""
	default:
		return false
	}
}

func matchesLayout(value string, layouts []string) bool {
	for _, layout := range layouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func blank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case []any:
		return len(v) == 0
	case map[string]any:
		for _, item := range v {
			if !blank(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

var patterns sync.Map

// compilePattern anchors pattern the way the HTML pattern attribute does.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}
