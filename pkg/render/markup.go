package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
)

type fieldMarkup struct {
	field       schema.Field
	caps        registry.Capabilities
	opts        Options
	htmlID      string
	name        string
	value       any
	control     []byte
	messages    []string
	description string
}

func (r *Renderer) writeField(buf *bytes.Buffer, m fieldMarkup) {
	wrap := !m.opts.NoWrapper && !m.opts.NoFieldWrapper
	if wrap {
		buf.WriteString(`<div class="cf-field cf-field--`)
		buf.WriteString(html.EscapeString(m.field.Type))
		if len(m.messages) > 0 {
			buf.WriteString(` cf-field--invalid`)
		}
		buf.WriteString(`" data-field-id="`)
		buf.WriteString(html.EscapeString(m.field.ID))
		buf.WriteString(`">`)
	}

	if m.description == registry.DescriptionBefore {
		r.writeDescription(buf, m.field)
	}
	if !m.opts.NoLabel {
		r.writeLabel(buf, m.field, m.htmlID)
	}
	if m.opts.IsRoot {
		writeMirror(buf, m.name, false, m.value)
	}

	controlWrap := !m.opts.NoWrapper && !m.opts.NoControlWrapper
	if controlWrap {
		buf.WriteString(`<div class="cf-field__control">`)
	}
	buf.Write(m.control)
	if controlWrap {
		buf.WriteString(`</div>`)
	}

	if len(m.messages) > 0 {
		buf.WriteString(`<ul class="cf-field__errors" id="`)
		buf.WriteString(html.EscapeString(m.htmlID))
		buf.WriteString(`-errors" role="alert">`)
		for _, message := range m.messages {
			buf.WriteString(`<li>`)
			buf.WriteString(html.EscapeString(r.T(message)))
			buf.WriteString(`</li>`)
		}
		buf.WriteString(`</ul>`)
	}
	if m.description != registry.DescriptionBefore {
		r.writeDescription(buf, m.field)
	}

	if wrap {
		buf.WriteString(`</div>`)
	}
}

// LabelHTML returns the sanitised label markup of field.
func (r *Renderer) LabelHTML(field schema.Field) string {
	title := r.sanitize(field.Title)
	if strings.TrimSpace(title) == "" {
		return ""
	}
	if field.Required {
		title += ` <span class="cf-field__required" aria-hidden="true">*</span>`
	}
	return title
}

func (r *Renderer) writeLabel(buf *bytes.Buffer, field schema.Field, htmlID string) {
	label := r.LabelHTML(field)
	if label == "" {
		return
	}
	buf.WriteString(`<label class="cf-field__label" for="`)
	buf.WriteString(html.EscapeString(htmlID))
	buf.WriteString(`">`)
	buf.WriteString(label)
	buf.WriteString(`</label>`)
}

func (r *Renderer) writeDescription(buf *bytes.Buffer, field schema.Field) {
	desc := r.sanitize(field.Description)
	if strings.TrimSpace(desc) == "" {
		return
	}
	buf.WriteString(`<div class="cf-field__description">`)
	buf.WriteString(desc)
	buf.WriteString(`</div>`)
}

func writeFailure(buf *bytes.Buffer, message string) {
	buf.WriteString(`<div class="cf-field__failure" role="alert">`)
	buf.WriteString(html.EscapeString(message))
	buf.WriteString(`</div>`)
}

func writeMirror(buf *bytes.Buffer, name string, hidden bool, value any) {
	fmt.Fprintf(buf, `<input type="hidden" name="%s" data-hide-field="%t" value="%s">`,
		html.EscapeString(name), hidden, html.EscapeString(MirrorValue(value)))
}

// MirrorValue serialises value for the hidden submission mirror: strings pass
// through, numbers and booleans use their canonical text, nil is empty and
// everything else is JSON.
func MirrorValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return fmt.Sprint(value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// HTMLID derives the element id of a control from its input name:
// "links[0][url]" becomes "cf-links-0-url".
func HTMLID(name string) string {
	var b strings.Builder
	b.WriteString("cf-")
	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
