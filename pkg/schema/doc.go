// Package schema defines the declarative field definitions consumed by the
// custom fields engine. A Definition groups the fields rendered on one hosting
// surface (options page, term table, block inspector, variation row) together
// with its tabs. Fields carry a small common core (id, type, title,
// description, required, default, conditions, tab) plus an open bag of
// type-specific options (`options`, `min`, `max`, `step`, `post_type`, ...)
// exposed through typed accessors so widgets never have to parse raw maps.
//
// Definitions load from JSON or YAML documents (LoadFS, Parse) or from the
// request body of an OpenAPI operation (FromOpenAPI).
package schema
