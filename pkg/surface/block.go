package surface

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-customfields/pkg/render"
	"github.com/goliatone/go-customfields/pkg/schema"
)

// WithSlots routes block fields into host-owned nodes. A field renders into
// the slot named by its "slot" option, else into the slot keyed by its id.
func WithSlots(slots map[string]io.Writer) Option {
	return func(c *config) {
		c.slots = slots
	}
}

// Block is the block-inspector surface. Controls render without wrappers,
// either inline or portalled into slots, and values usually live in a store
// owned by the block editor.
type Block struct {
	*Root
	slots map[string]io.Writer
}

// NewBlock builds a block surface.
func NewBlock(def schema.Definition, opts ...Option) (*Block, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	root, err := newRoot(def, cfg)
	if err != nil {
		return nil, err
	}
	return &Block{Root: root, slots: cfg.slots}, nil
}

// Render writes the inline fields to w and the slotted ones to their nodes.
func (b *Block) Render(ctx context.Context, w io.Writer) error {
	var buf bytes.Buffer
	b.openSurface(&buf, "div", "block", nil)
	b.writeFormErrors(&buf)
	err := b.renderFields(ctx, &buf, func(field schema.Field, props render.Props) render.Props {
		props.Options.NoWrapper = true
		props.Node = b.slot(field)
		return props
	})
	if err != nil {
		return err
	}
	buf.WriteString(`</div>`)
	_, err = buf.WriteTo(w)
	return err
}

// RenderFragments renders the selected fields without wrappers. Fragments are
// returned rather than written to slots so a live editor can patch them.
func (b *Block) RenderFragments(ctx context.Context, subset render.FieldSubset) (map[string]string, error) {
	return b.renderFragments(ctx, subset, func(field schema.Field, props render.Props) render.Props {
		props.Options.NoWrapper = true
		return props
	})
}

func (b *Block) slot(field schema.Field) io.Writer {
	if len(b.slots) == 0 {
		return nil
	}
	if name := field.String("slot"); name != "" {
		if node, ok := b.slots[name]; ok {
			return node
		}
	}
	return b.slots[field.ID]
}
