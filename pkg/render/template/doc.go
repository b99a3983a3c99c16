// Package template defines the template engine contract used by field
// controls.
package template
