// Package query implements the L6 path query language: a lexer, a
// recursive-descent parser producing a small AST, a compiler lowering
// the AST to closures over an explicit evaluation context, and the axis
// walks (self/parent/child/attribute/ancestor[-or-self]/
// descendant[-or-self]/following[-sibling]/preceeding[-sibling]) that
// drive traversal of the content tree (spec §4.7).
package query

import "errors"

// Sentinel errors per the query error taxonomy (spec §7.4).
var (
	// ErrSyntax is returned by the lexer or parser on malformed input.
	// Wrapping errors include the offending position and token text.
	ErrSyntax = errors.New("query: syntax error")

	// ErrName is returned for an undefined function, axis, or variable
	// reference encountered while compiling or evaluating a query.
	ErrName = errors.New("query: undefined name")

	// ErrType is returned when an operator is applied to operands its
	// semantics do not define, e.g. arithmetic on a non-numeric value.
	ErrType = errors.New("query: type error")
)
