package surface

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/values"
)

// VariationPrefix is the input name prefix of variation row loop.
func VariationPrefix(loop int) string {
	return "variable_" + strconv.Itoa(loop)
}

// Variation renders the fields of one product-variation row. Inputs are
// named "variable_{loop}[id]" so several rows can share one form.
type Variation struct {
	*Root
	loop int
}

// NewVariation builds the surface of variation row loop.
func NewVariation(def schema.Definition, loop int, opts ...Option) (*Variation, error) {
	root, err := NewRoot(def, opts...)
	if err != nil {
		return nil, err
	}
	return &Variation{Root: root, loop: loop}, nil
}

// Loop returns the row index.
func (v *Variation) Loop() int { return v.loop }

// Render writes the row's fields.
func (v *Variation) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	v.openSurface(&buf, "div", "variation", [][2]string{{"data-loop", strconv.Itoa(v.loop)}})
	v.writeFormErrors(&buf)
	prefix := VariationPrefix(v.loop)
	err := v.renderFields(ctx, &buf, func(field schema.Field, props render.Props) render.Props {
		props.Name = prefix + "[" + field.ID + "]"
		return props
	})
	if err != nil {
		return err
	}
	buf.WriteString(`</div>`)
	_, err = buf.WriteTo(w)
	return err
}

// Decode reads this row's inputs from a form post that may carry many rows.
func (v *Variation) Decode(form url.Values) (values.Bag, error) {
	return DecodeVariation(v.renderer.Registry(), v.def.Fields, form, v.loop)
}

// Submit decodes this row, stores the result and checks it.
func (v *Variation) Submit(ctx context.Context, form url.Values) (bool, error) {
	bag, err := v.Decode(form)
	if err != nil {
		return false, err
	}
	v.store.Replace(bag)
	return v.Check(ctx)
}
