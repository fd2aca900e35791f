package codec

// Record is the host representation of a record(name, base?, fields[])
// value: a named slot map plus the schema that defines field order and
// types. Field order for iteration (binary encoding, JSON field emission)
// always follows Schema.Fields, never map iteration order.
type Record struct {
	Schema *Schema
	values map[string]any
}

// NewRecord creates an empty record conforming to schema, with every
// field defaulted to nil (callers must Set required fields before
// encoding; encoding a nil value against a non-nullable field schema
// fails with ErrType).
func NewRecord(schema *Schema) *Record {
	return &Record{Schema: schema, values: make(map[string]any, len(schema.Fields))}
}

// TypeName returns the record's declared type name.
func (r *Record) TypeName() TypeName { return r.Schema.Name }

// Get returns the value stored at field name.
func (r *Record) Get(name string) any { return r.values[name] }

// Set stores v at field name. It does not validate v against the
// field's schema; that happens at encode time.
func (r *Record) Set(name string, v any) { r.values[name] = v }

// Has reports whether field name has been explicitly set.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Clone returns a shallow copy of r; complex field values (records, maps,
// omaps, sets, arrays) are not deep-copied, matching "copy of an interned
// value is a no-op" for the value types that are themselves immutable,
// while mutable containers remain shared until a caller explicitly
// rebuilds them.
func (r *Record) Clone() *Record {
	out := NewRecord(r.Schema)
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}
