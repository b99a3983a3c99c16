// Package values holds field values for a rendering surface.
//
// A Store hands out immutable Bag snapshots and one setter per field id. The
// Memory store is owned by the surface itself; External forwards every change
// to state owned by a host editor. Path helpers (Get, SetPath, Segments)
// address nested group and repeater values with dotted and bracketed paths.
package values
