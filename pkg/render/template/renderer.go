package template

import (
	"io"
)

// TemplateRenderer is the seam field controls render through. The default
// implementation is the pongo2 engine in the pongo subpackage; hosts may plug
// any engine with the same contract.
type TemplateRenderer interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}
