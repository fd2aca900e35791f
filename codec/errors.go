// Package codec implements the typed serialization layer: schema-driven
// binary and JSON codecs over null/boolean/int32/int64/float32/float64/
// string/bytes/fixed/record/array/map/omap/set/union values, a type
// registry shared with the query layer, and the logical Key type.
package codec

import "errors"

// Sentinel errors per the type/codec error taxonomy (spec §7.3).
var (
	// ErrType is returned when a value does not conform to its schema
	// during encoding, decoding, or adaptation.
	ErrType = errors.New("codec: type error")

	// ErrSchema is returned for invalid or duplicate schema declarations.
	ErrSchema = errors.New("codec: schema error")

	// ErrName is returned for references to an unknown type name.
	ErrName = errors.New("codec: unknown name")
)
