package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrMissingTranslator is passed to MissingTranslationHandler when no
// translator is configured.
var ErrMissingTranslator = errors.New("render: translator not configured")

// ErrMissingTranslation is returned by Catalog for unknown keys.
var ErrMissingTranslation = errors.New("render: missing translation")

// Translator resolves a message key for a locale. Keys are the English source
// strings used by the field types (e.g. "This field is required.").
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate implements Translator.
func (fn TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return fn(locale, key, args...)
}

// MissingTranslationHandler decides the string shown when a key cannot be
// translated. err is ErrMissingTranslator when no translator is set.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

func missingTranslationDefault(_ string, key string, args []any, _ error) string {
	if len(args) == 0 {
		return key
	}
	if strings.Contains(key, "%") {
		return fmt.Sprintf(key, args...)
	}
	return key
}

// Catalog is an in-memory Translator keyed by locale then message. Lookups
// fall back from "pt-BR" to "pt" and then to the fallback locale.
type Catalog struct {
	mu       sync.RWMutex
	fallback string
	messages map[string]map[string]string
}

// NewCatalog creates a catalog. fallback may be empty.
func NewCatalog(fallback string) *Catalog {
	return &Catalog{
		fallback: normalizeLocale(fallback),
		messages: make(map[string]map[string]string),
	}
}

// Add stores messages for locale, replacing existing keys.
func (c *Catalog) Add(locale string, messages map[string]string) *Catalog {
	locale = normalizeLocale(locale)
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.messages[locale]
	if bucket == nil {
		bucket = make(map[string]string, len(messages))
		c.messages[locale] = bucket
	}
	for key, msg := range messages {
		bucket[key] = msg
	}
	return c
}

// Translate implements Translator. Messages containing format verbs are
// formatted with args.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range localeChain(normalizeLocale(locale), c.fallback) {
		if msg, ok := c.messages[candidate][key]; ok && strings.TrimSpace(msg) != "" {
			if len(args) > 0 && strings.Contains(msg, "%") {
				return fmt.Sprintf(msg, args...), nil
			}
			return msg, nil
		}
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrMissingTranslation, key, locale)
}

func localeChain(locale, fallback string) []string {
	chain := make([]string, 0, 3)
	if locale != "" {
		chain = append(chain, locale)
		if base, _, ok := strings.Cut(locale, "-"); ok {
			chain = append(chain, base)
		}
	}
	if fallback != "" && fallback != locale {
		chain = append(chain, fallback)
	}
	return chain
}

func normalizeLocale(locale string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(locale)), "_", "-")
}

// translate resolves key, routing failures through onMissing.
func translate(locale, key string, t Translator, onMissing MissingTranslationHandler, args ...any) string {
	if strings.TrimSpace(key) == "" {
		return key
	}
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	if t == nil {
		return onMissing(locale, key, args, ErrMissingTranslator)
	}
	msg, err := t.Translate(locale, key, args...)
	if err != nil || strings.TrimSpace(msg) == "" {
		return onMissing(locale, key, args, err)
	}
	return msg
}
