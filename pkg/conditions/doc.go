// Package conditions evaluates field visibility.
//
// A condition expression is an array of leaves, "and"/"or" tokens and nested
// arrays, evaluated strictly left to right. Leaf field references may start
// with '#' markers that climb from the evaluated field's own path, so a
// repeater row can refer to its siblings with "#sibling".
package conditions
