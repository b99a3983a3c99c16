package surface

import (
	"bytes"
	"html"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"
)

type themeConfig struct {
	selector theme.ThemeSelector
	name     string
	variant  string
	manifest *theme.Manifest
}

// WithTheme resolves design tokens through a go-theme selector. Tokens are
// emitted as --cf-* custom properties on the surface wrapper.
func WithTheme(selector theme.ThemeSelector, name, variant string) Option {
	return func(c *config) {
		c.theme.selector = selector
		c.theme.name = name
		c.theme.variant = variant
	}
}

// WithThemeManifest uses manifest directly, optionally with a variant.
func WithThemeManifest(manifest *theme.Manifest, variant string) Option {
	return func(c *config) {
		c.theme.manifest = manifest
		c.theme.variant = variant
	}
}

// CSSVars returns the theme tokens as custom properties. Variant tokens
// override the manifest's base tokens.
func (r *Root) CSSVars() map[string]string {
	manifest, variant := r.theme.manifest, r.theme.variant
	if r.theme.selector != nil {
		selection, err := r.theme.selector.Select(r.theme.name, r.theme.variant)
		if err != nil {
			r.logger.Warn("surface: theme selection failed",
				"theme", r.theme.name,
				"variant", r.theme.variant,
				"error", err,
			)
			return nil
		}
		if selection != nil {
			manifest, variant = selection.Manifest, selection.Variant
		}
	}
	if manifest == nil {
		return nil
	}

	tokens := make(map[string]string, len(manifest.Tokens))
	for key, value := range manifest.Tokens {
		tokens[key] = value
	}
	if v, ok := manifest.Variants[variant]; ok {
		for key, value := range v.Tokens {
			tokens[key] = value
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	vars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		if name := cssVarName(key); name != "" {
			vars[name] = value
		}
	}
	return vars
}

func cssVarName(token string) string {
	token = strings.TrimSpace(strings.TrimPrefix(token, "--"))
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == '.', r == '_', r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "--cf-" + b.String()
}

func styleAttr(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+strings.TrimSpace(vars[key]))
	}
	return strings.Join(parts, "; ")
}

// openSurface writes the opening wrapper tag shared by every surface.
func (r *Root) openSurface(buf *bytes.Buffer, tag, kind string, attrs [][2]string) {
	buf.WriteString(`<`)
	buf.WriteString(tag)
	buf.WriteString(` class="cf-surface cf-surface--`)
	buf.WriteString(kind)
	buf.WriteString(`" data-definition="`)
	buf.WriteString(escape(r.def.ID))
	buf.WriteString(`"`)
	for _, attr := range attrs {
		if attr[1] == "" {
			continue
		}
		buf.WriteString(` `)
		buf.WriteString(attr[0])
		buf.WriteString(`="`)
		buf.WriteString(escape(attr[1]))
		buf.WriteString(`"`)
	}
	if style := styleAttr(r.CSSVars()); style != "" {
		buf.WriteString(` style="`)
		buf.WriteString(escape(style))
		buf.WriteString(`"`)
	}
	buf.WriteString(`>`)
}

func escape(value string) string {
	return html.EscapeString(value)
}
