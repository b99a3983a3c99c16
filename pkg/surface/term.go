package surface

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
)

// TermTable is the taxonomy edit surface: one table row per field, label in
// the header cell and the control in the data cell.
type TermTable struct {
	*Root
}

// NewTermTable builds a term edit table.
func NewTermTable(def schema.Definition, opts ...Option) (*TermTable, error) {
	root, err := NewRoot(def, opts...)
	if err != nil {
		return nil, err
	}
	return &TermTable{Root: root}, nil
}

// Render writes the table. Hidden fields keep a row so their mirror still
// posts, but the row itself is hidden.
func (t *TermTable) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	t.openSurface(&buf, "table", "term", [][2]string{{"role", "presentation"}})
	buf.WriteString(`<tbody>`)
	if len(t.errors.Form) > 0 {
		buf.WriteString(`<tr class="cf-term-errors"><td colspan="2">`)
		t.writeFormErrors(&buf)
		buf.WriteString(`</td></tr>`)
	}

	t.agg.Reset()
	bag := t.store.Snapshot()
	for _, field := range t.def.Fields {
		props := t.props(field, bag)
		shown, err := t.renderer.Visible(props)
		if err != nil {
			return err
		}

		buf.WriteString(`<tr class="form-field cf-term-field" data-field-id="`)
		buf.WriteString(escape(field.ID))
		if !shown {
			buf.WriteString(`" hidden><td colspan="2">`)
			if _, err := t.renderer.Render(ctx, &buf, props); err != nil {
				return err
			}
			buf.WriteString(`</td></tr>`)
			continue
		}

		buf.WriteString(`"><th scope="row">`)
		if label := t.renderer.LabelHTML(field); label != "" {
			buf.WriteString(`<label for="`)
			buf.WriteString(render.HTMLID(field.ID))
			buf.WriteString(`">`)
			buf.WriteString(label)
			buf.WriteString(`</label>`)
		}
		buf.WriteString(`</th><td>`)
		props.Options.NoFieldWrapper = true
		props.Options.NoLabel = true
		if _, err := t.renderer.Render(ctx, &buf, props); err != nil {
			return err
		}
		buf.WriteString(`</td></tr>`)
	}
	buf.WriteString(`</tbody></table>`)

	_, err := buf.WriteTo(w)
	return err
}
