package render

import (
	"io"

	"github.com/goliatone/go-customfields/pkg/registry"
	"github.com/goliatone/go-customfields/pkg/schema"
	"github.com/goliatone/go-customfields/pkg/validity"
	"github.com/goliatone/go-customfields/pkg/values"
)

// Options are the structural render options threaded top-down.
type Options = registry.RenderOptions

// Props are the inputs of one field instance.
type Props struct {
	Field schema.Field
	// Path addresses the value in Bag and anchors relative condition paths.
	// Defaults to Field.ID.
	Path string
	// Name is the form input name. Defaults to Field.ID.
	Name string
	// Value is the field's current value. When nil it is read from Bag.
	Value       any
	OnChange    func(any)
	SetValidity func(validity.Result)
	ActiveTab   string
	Options     Options
	// Node, when set, receives the markup instead of the writer passed to
	// Render.
	Node     io.Writer
	Bag      values.Bag
	Disabled bool
	// Errors holds server-reported messages shown next to the computed ones.
	Errors validity.Result
}

// State is what one Render call decided.
type State struct {
	Shown    bool
	Validity validity.Result
}
