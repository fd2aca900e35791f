package codec

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Constructor builds a zero-value host-language instance for a registered
// type name, used by the query layer's kind tests and by JSON decoding to
// produce typed results instead of bare maps.
type Constructor func() *Record

// Registry maps TypeName (qualified string form) to Schema, and
// optionally to a host Constructor, shared by the codec and query
// packages. A Registry is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	schemas      map[string]*Schema
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:      make(map[string]*Schema),
		constructors: make(map[string]Constructor),
	}
}

// Lookup returns the schema registered under name, or ErrName.
func (r *Registry) Lookup(name TypeName) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name.Qualified()]
	if !ok {
		return nil, fmt.Errorf("codec: %s: %w", name, ErrName)
	}
	return s, nil
}

// IsSubtype reports whether sub names a record that is kind (directly or
// transitively, via Base) a subtype of kind — including kind itself. Used
// by Zipper.Find and by the query layer's kind tests.
func (r *Registry) IsSubtype(sub, kind TypeName) bool {
	if sub.Qualified() == kind.Qualified() {
		return true
	}
	s, err := r.Lookup(sub)
	if err != nil || s.Kind != KindRecord || s.Base.IsZero() {
		return false
	}
	return r.IsSubtype(s.Base, kind)
}

// Constructor returns the registered constructor for name, if any.
func (r *Registry) Constructor(name TypeName) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[name.Qualified()]
	return c, ok
}

// RegisterConstructor attaches a host-type constructor to an already
// registered record schema.
func (r *Registry) RegisterConstructor(name TypeName, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name.Qualified()] = ctor
}

// Register adds a fully-built Schema under its own Name (record/fixed)
// or under an explicit name for other kinds. It is an error to register
// the same qualified name twice.
func (r *Registry) Register(name TypeName, schema *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := name.Qualified()
	if _, exists := r.schemas[key]; exists {
		return fmt.Errorf("codec: %s already registered: %w", name, ErrSchema)
	}
	r.schemas[key] = schema
	return nil
}

// recordDecl is the JSON shape of a record declaration, the Avro form
// extended with "base" per spec §4.2.
type recordDecl struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Base   string          `json:"base,omitempty"`
	Fields []fieldDecl     `json:"fields,omitempty"`
	Size   int             `json:"size,omitempty"`
	Items  json.RawMessage `json:"items,omitempty"`
	Values json.RawMessage `json:"values,omitempty"`
}

type fieldDecl struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

// RegisterJSON declares one or more schemas from their canonical JSON
// form (see spec §6 "Schema declaration (JSON)") and registers them. Use
// for record and fixed declarations; inline scalar/complex schemas
// referenced from a field's "type" are resolved recursively without
// separate registration.
func (r *Registry) RegisterJSON(data []byte) (*Schema, error) {
	var decl recordDecl
	if err := json.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("codec: parse schema json: %w: %v", ErrSchema, err)
	}

	switch decl.Type {
	case "record":
		return r.registerRecord(decl)
	case "fixed":
		name := NewTypeName(decl.Name)
		s := NewFixed(name, decl.Size)
		if err := r.Register(name, s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("codec: top-level schema must be record or fixed, got %q: %w", decl.Type, ErrSchema)
	}
}

func (r *Registry) registerRecord(decl recordDecl) (*Schema, error) {
	name := NewTypeName(decl.Name)

	var base *Schema
	var baseName TypeName
	if decl.Base != "" {
		baseName = NewTypeName(decl.Base)
		b, err := r.Lookup(baseName)
		if err != nil {
			return nil, fmt.Errorf("codec: record %s base %s: %w", name, decl.Base, err)
		}
		if b.Kind != KindRecord {
			return nil, fmt.Errorf("codec: record %s base %s is not a record: %w", name, decl.Base, ErrSchema)
		}
		base = b
	}

	own := make([]Field, 0, len(decl.Fields))
	ownByName := make(map[string]bool, len(decl.Fields))
	for _, fd := range decl.Fields {
		t, err := r.resolveType(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("codec: record %s field %s: %w", name, fd.Name, err)
		}
		own = append(own, Field{Name: fd.Name, Type: t})
		ownByName[fd.Name] = true
	}

	var fields []Field
	if base != nil {
		for _, bf := range base.Fields {
			if ownByName[bf.Name] {
				continue // a redeclared base field is dropped here and takes the subclass's own position below
			}
			fields = append(fields, Field{Name: bf.Name, Type: bf.Type, FromBase: true})
		}
	}
	fields = append(fields, own...)

	s := &Schema{Kind: KindRecord, Name: name, Base: baseName, Fields: fields}
	if err := r.Register(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

// resolveType resolves a field's "type" JSON value: either a bare string
// (primitive name or reference to a registered record/fixed), or an
// inline object describing a complex type (array/map/omap/set/union/
// nested record/fixed).
func (r *Registry) resolveType(raw json.RawMessage) (*Schema, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return r.resolveName(asString)
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		branches := make([]*Schema, len(asArray))
		for i, b := range asArray {
			t, err := r.resolveType(b)
			if err != nil {
				return nil, err
			}
			branches[i] = t
		}
		return NewUnion(branches...), nil
	}

	var obj struct {
		Type   string          `json:"type"`
		Items  json.RawMessage `json:"items"`
		Values json.RawMessage `json:"values"`
		Name   string          `json:"name"`
		Size   int             `json:"size"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("codec: malformed type declaration: %w", ErrSchema)
	}

	switch obj.Type {
	case "array":
		items, err := r.resolveType(obj.Items)
		if err != nil {
			return nil, err
		}
		return NewArray(items), nil
	case "set":
		items, err := r.resolveType(obj.Items)
		if err != nil {
			return nil, err
		}
		return NewSet(items), nil
	case "map":
		values, err := r.resolveType(obj.Values)
		if err != nil {
			return nil, err
		}
		return NewMap(values), nil
	case "omap":
		values, err := r.resolveType(obj.Values)
		if err != nil {
			return nil, err
		}
		return NewOmap(values), nil
	case "fixed":
		name := NewTypeName(obj.Name)
		s := NewFixed(name, obj.Size)
		_ = r.Register(name, s) // inline fixed types may be declared more than once; ignore duplicates here
		return s, nil
	case "record":
		return r.registerRecord(recordDeclFromRaw(raw))
	default:
		return r.resolveName(obj.Type)
	}
}

func recordDeclFromRaw(raw json.RawMessage) recordDecl {
	var decl recordDecl
	_ = json.Unmarshal(raw, &decl)
	return decl
}

func (r *Registry) resolveName(name string) (*Schema, error) {
	switch name {
	case "null":
		return Null, nil
	case "boolean":
		return Boolean, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "string":
		return String, nil
	case "bytes":
		return Bytes, nil
	}
	return r.Lookup(NewTypeName(name))
}
