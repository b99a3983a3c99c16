package render

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-customfields/pkg/render/template"
)

// TemplateI18nConfig configures the translation helpers exposed to control
// templates.
type TemplateI18nConfig struct {
	// LocaleKey is the key read from map or struct arguments to find the
	// locale. Defaults to "locale".
	LocaleKey string
	// FuncName names the translate helper. Defaults to "translate".
	FuncName  string
	OnMissing MissingTranslationHandler
}

// TemplateI18nFuncs returns helpers for template globals:
//
//	{{ translate(locale, "Add item") }}
//	{{ current_locale(field) }}
//
// The locale argument may be a string or a map/struct holding the locale
// under cfg.LocaleKey.
func TemplateI18nFuncs(t Translator, cfg TemplateI18nConfig) map[string]any {
	localeKey := strings.TrimSpace(cfg.LocaleKey)
	if localeKey == "" {
		localeKey = "locale"
	}
	name := strings.TrimSpace(cfg.FuncName)
	if name == "" {
		name = "translate"
	}
	onMissing := cfg.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}

	return map[string]any{
		name: func(localeSrc any, key string, params ...any) string {
			return translate(resolveLocale(localeSrc, localeKey), strings.TrimSpace(key), t, onMissing, params...)
		},
		"current_locale": func(localeSrc any) string {
			return resolveLocale(localeSrc, localeKey)
		},
	}
}

// InstallTemplateI18n publishes the helpers and the active locale as template
// globals.
func InstallTemplateI18n(engine template.TemplateRenderer, t Translator, locale string, cfg TemplateI18nConfig) error {
	if engine == nil {
		return nil
	}
	globals := TemplateI18nFuncs(t, cfg)
	globals["locale"] = locale
	if err := engine.GlobalContext(globals); err != nil {
		return fmt.Errorf("render: install template i18n: %w", err)
	}
	return nil
}

func resolveLocale(src any, key string) string {
	switch data := src.(type) {
	case nil:
		return ""
	case string:
		return data
	case map[string]any:
		if v, ok := data[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	case map[string]string:
		return data[key]
	}

	value := reflect.ValueOf(src)
	for value.IsValid() && value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ""
		}
		value = value.Elem()
	}
	if !value.IsValid() || value.Kind() != reflect.Struct {
		return ""
	}
	field := value.FieldByNameFunc(func(name string) bool {
		return strings.EqualFold(name, key)
	})
	if field.IsValid() && field.Kind() == reflect.String {
		return field.String()
	}
	return ""
}
