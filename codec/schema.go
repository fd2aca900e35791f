package codec

import "fmt"

// Kind discriminates the variants of Schema, mirroring the Avro-shaped
// type system of spec §3/§4.2 plus the base/omap/set extensions.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindFixed
	KindRecord
	KindArray
	KindMap
	KindOmap
	KindSet
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindFixed:
		return "fixed"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindOmap:
		return "omap"
	case KindSet:
		return "set"
	case KindUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Field is a single record field: a name and the schema it must conform
// to. For a subclass, FromBase marks fields that were inherited verbatim
// (not redeclared) from the base record, per invariant 7's ordering rule.
type Field struct {
	Name     string
	Type     *Schema
	FromBase bool
}

// Schema is one node of a value's type description. Complex kinds use
// the subset of fields relevant to that kind; scalar kinds use none.
type Schema struct {
	Kind Kind

	// Name and Size are used by Fixed and Record.
	Name TypeName
	Size int // Fixed only

	// Base is the direct parent record TypeName, or the zero TypeName if
	// this record has no base.
	Base TypeName
	// Fields holds the record's complete, flattened field list: base
	// fields first in inherited declaration order (excluding any name the
	// subclass redeclares), then the subclass's own fields in declaration
	// order. This is computed once at registration time (see registry.go).
	Fields []Field

	// Items is the element schema for Array and Set.
	Items *Schema
	// Values is the value schema for Map and Omap.
	Values *Schema
	// Branches lists the union's alternative schemas, in declared order.
	Branches []*Schema
}

// FieldNames returns the flattened field names in schema order, a
// convenience for callers that only need names (e.g. the content tree's
// path-resolution code).
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name, returning (field, true) or the zero
// Field and false.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) String() string {
	switch s.Kind {
	case KindRecord, KindFixed:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Name)
	case KindArray, KindSet:
		return fmt.Sprintf("%s<%s>", s.Kind, s.Items)
	case KindMap, KindOmap:
		return fmt.Sprintf("%s<%s>", s.Kind, s.Values)
	case KindUnion:
		return fmt.Sprintf("union%v", s.Branches)
	default:
		return s.Kind.String()
	}
}

// Primitive schema singletons; primitives carry no identity beyond Kind.
var (
	Null    = &Schema{Kind: KindNull}
	Boolean = &Schema{Kind: KindBoolean}
	Int32   = &Schema{Kind: KindInt32}
	Int64   = &Schema{Kind: KindInt64}
	Float32 = &Schema{Kind: KindFloat32}
	Float64 = &Schema{Kind: KindFloat64}
	String  = &Schema{Kind: KindString}
	Bytes   = &Schema{Kind: KindBytes}
)

// NewFixed declares an inline fixed(name, size) schema.
func NewFixed(name TypeName, size int) *Schema {
	return &Schema{Kind: KindFixed, Name: name, Size: size}
}

// NewArray declares an array(items) schema.
func NewArray(items *Schema) *Schema { return &Schema{Kind: KindArray, Items: items} }

// NewSet declares a set(items) schema.
func NewSet(items *Schema) *Schema { return &Schema{Kind: KindSet, Items: items} }

// NewMap declares a map(values) schema.
func NewMap(values *Schema) *Schema { return &Schema{Kind: KindMap, Values: values} }

// NewOmap declares an omap(values) schema.
func NewOmap(values *Schema) *Schema { return &Schema{Kind: KindOmap, Values: values} }

// NewUnion declares a union of the given branch schemas, in order.
func NewUnion(branches ...*Schema) *Schema { return &Schema{Kind: KindUnion, Branches: branches} }
