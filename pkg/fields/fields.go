// Package fields provides the built-in field types: their controls, value
// normalisation and validity checks.
//
// Scalar controls render through the embedded pongo2 templates (see
// Templates); composite types (group and the multi_* repeaters) render their
// items through the field pipeline supplied in registry.Props.RenderChild.
package fields

import (
	"embed"
	"io/fs"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
)

// Built-in type names.
const (
	TypeText          = "text"
	TypeEmail         = "email"
	TypeURL           = "url"
	TypeTel           = "tel"
	TypePassword      = "password"
	TypeColor         = "color"
	TypeDate          = "date"
	TypeDatetime      = "datetime"
	TypeTime          = "time"
	TypeHidden        = "hidden"
	TypeNumber        = "number"
	TypeRange         = "range"
	TypeTextarea      = "textarea"
	TypeCode          = "code"
	TypeWysiwyg       = "wysiwyg"
	TypeSelect        = "select"
	TypeRadio         = "radio"
	TypeMultiSelect   = "multi_select"
	TypeCheckbox      = "checkbox"
	TypeToggle        = "toggle"
	TypeMultiCheckbox = "multi_checkbox"
	TypeLink          = "link"
	TypeAttachment    = "attachment"
	TypePost          = "post"
	TypeTerm          = "term"
	TypeGroup         = "group"
	TypeMultiGroup    = "multi_group"
	TypeHTML          = "html"
	TypeTitle         = "title"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

// Templates exposes the control templates so hosts can layer overrides on
// top of them.
func Templates() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return embeddedTemplates
	}
	return sub
}

// NewRegistry returns a registry holding every built-in type.
func NewRegistry(options ...registry.Option) *registry.Registry {
	reg := registry.New(options...)
	RegisterDefaults(reg)
	return reg
}

// RegisterDefaults registers the built-in types on reg. Existing
// registrations for the same names are replaced.
func RegisterDefaults(reg *registry.Registry) {
	for _, name := range []string{TypeText, TypeEmail, TypeURL, TypeTel, TypePassword, TypeColor, TypeDate, TypeDatetime, TypeTime, TypeHidden} {
		reg.MustRegister(name, registry.Capabilities{
			Render:        inputRenderer,
			CheckValidity: checkText,
			Normalize:     normalizeString,
			Title:         titleString,
		})
	}
	for _, name := range []string{TypeNumber, TypeRange} {
		reg.MustRegister(name, registry.Capabilities{
			Render:        inputRenderer,
			CheckValidity: checkNumber,
			Normalize:     normalizeNumber,
			Title:         titleString,
		})
	}
	reg.MustRegister(TypeAttachment, registry.Capabilities{
		Render:        inputRenderer,
		CheckValidity: checkNumber,
		Normalize:     normalizeNumber,
		Title:         titleString,
	})
	reg.MustRegister(TypeTextarea, registry.Capabilities{
		Render:        textareaRenderer,
		CheckValidity: checkText,
		Normalize:     normalizeString,
		Title:         titleString,
	})
	reg.MustRegister(TypeCode, registry.Capabilities{
		Render:        textareaRenderer,
		CheckValidity: checkText,
		Normalize:     normalizeString,
	})
	reg.MustRegister(TypeWysiwyg, registry.Capabilities{
		Render:              textareaRenderer,
		CheckValidity:       checkText,
		Normalize:           normalizeHTML,
		DescriptionPosition: registry.DescriptionBefore,
	})
	for _, name := range []string{TypeSelect, TypePost, TypeTerm} {
		reg.MustRegister(name, registry.Capabilities{
			Render:        selectRenderer,
			CheckValidity: checkChoice,
			Normalize:     normalizeString,
			Title:         titleChoice,
		})
	}
	reg.MustRegister(TypeRadio, registry.Capabilities{
		Render:        radioRenderer,
		CheckValidity: checkChoice,
		Normalize:     normalizeString,
		Title:         titleChoice,
	})
	reg.MustRegister(TypeMultiSelect, registry.Capabilities{
		Render:        selectRenderer,
		CheckValidity: checkChoices,
		Normalize:     normalizeStrings,
		Title:         titleChoices,
		Composite:     true,
	})
	reg.MustRegister(TypeMultiCheckbox, registry.Capabilities{
		Render:        multiCheckboxRenderer,
		CheckValidity: checkChoices,
		Normalize:     normalizeStrings,
		Title:         titleChoices,
		Composite:     true,
	})
	for _, name := range []string{TypeCheckbox, TypeToggle} {
		reg.MustRegister(name, registry.Capabilities{
			Render:        checkboxRenderer,
			CheckValidity: checkBool,
			Normalize:     normalizeBool,
		})
	}
	reg.MustRegister(TypeLink, registry.Capabilities{
		Render:        linkRenderer,
		CheckValidity: checkLink,
		Normalize:     normalizeLink,
		Title:         titleLink,
		Composite:     true,
	})
	reg.MustRegister(TypeGroup, registry.Capabilities{
		Render:        groupRenderer,
		CheckValidity: checkGroup,
		Normalize: func(value any, field schema.Field) any {
			return normalizeGroupWith(reg, value, field)
		},
		Title:     titleGroup,
		Composite: true,
	})
	reg.MustRegister(registry.MultiWildcard, registry.Capabilities{
		Render:        repeaterRenderer,
		CheckValidity: checkRepeater,
		Normalize: func(value any, field schema.Field) any {
			return normalizeRepeaterWith(reg, value, field)
		},
		Composite: true,
	})
	reg.MustRegister(TypeHTML, registry.Capabilities{
		Render:        htmlRenderer,
		Normalize:     normalizeStatic,
		RenderOptions: &registry.RenderOptions{NoLabel: true},
	})
	reg.MustRegister(TypeTitle, registry.Capabilities{
		Render:        titleRenderer,
		Normalize:     normalizeStatic,
		RenderOptions: &registry.RenderOptions{NoLabel: true},
	})
}

// Static reports whether fieldType carries no value of its own.
func Static(fieldType string) bool {
	return fieldType == TypeHTML || fieldType == TypeTitle
}
