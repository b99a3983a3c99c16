package registry

import (
	"bytes"

	"github.com/goliatone/go-customfields/pkg/render/template"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
	"github.com/goliatone/go-customfields/pkg/values"
)

// RenderOptions suppress structural wrapping layers. Hosting surfaces need
// different markup around otherwise identical controls.
type RenderOptions struct {
	NoFieldWrapper   bool `json:"noFieldWrapper,omitempty"`
	NoControlWrapper bool `json:"noControlWrapper,omitempty"`
	NoLabel          bool `json:"noLabel,omitempty"`
	NoWrapper        bool `json:"noWrapper,omitempty"`
	IsRoot           bool `json:"isRoot,omitempty"`
}

// Merge returns o with every flag set in other turned on.
func (o RenderOptions) Merge(other RenderOptions) RenderOptions {
	return RenderOptions{
		NoFieldWrapper:   o.NoFieldWrapper || other.NoFieldWrapper,
		NoControlWrapper: o.NoControlWrapper || other.NoControlWrapper,
		NoLabel:          o.NoLabel || other.NoLabel,
		NoWrapper:        o.NoWrapper || other.NoWrapper,
		IsRoot:           o.IsRoot || other.IsRoot,
	}
}

// Props is the full prop set a control renderer receives.
type Props struct {
	Field schema.Field
	// HTMLID is the element id of the primary control.
	HTMLID string
	// Path addresses the value inside the bag ("links.0.url").
	Path string
	// Name is the form input name ("links[0][url]").
	Name     string
	Value    any
	OnChange func(any)
	Bag      values.Bag
	Validity validity.Result
	Disabled bool
	Locale   string

	Template  template.TemplateRenderer
	Translate func(message string) string

	// Choices holds static or remotely fetched options for choice controls.
	Choices []schema.Choice
	// ChoicesErr is set when remote options could not be loaded.
	ChoicesErr error

	// RenderChild renders a nested field through the full field pipeline
	// (visibility, validity, wrappers). Composite controls use it for their
	// items.
	RenderChild func(buf *bytes.Buffer, child Child) error
}

// Child describes one nested field rendered by a composite control.
type Child struct {
	Field schema.Field
	// Key is appended to the parent's path and name: a child id for groups,
	// a decimal index for repeaters.
	Key      string
	Value    any
	OnChange func(any)
	Options  RenderOptions
}

// T translates message when a translator is attached.
func (p Props) T(message string) string {
	if p.Translate == nil {
		return message
	}
	return p.Translate(message)
}
