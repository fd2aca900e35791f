package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// JSONCodec encodes and decodes values against a Registry in the spec
// §4.2 JSON form: records as field-name→value objects (schema order on
// encode), omap as an array of [k,v] pairs, map as an object with sorted
// keys, set as a sorted array, union as the bare selected branch's value.
type JSONCodec struct {
	Registry *Registry
}

// NewJSONCodec creates a codec bound to reg.
func NewJSONCodec(reg *Registry) *JSONCodec {
	return &JSONCodec{Registry: reg}
}

// Marshal renders v (a *Record) as JSON.
func (c *JSONCodec) Marshal(v any) ([]byte, error) {
	node, err := c.toJSON(nil, v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// Unmarshal decodes JSON data into a *Record conforming to schema.
func (c *JSONCodec) Unmarshal(data []byte, schema *Schema) (*Record, error) {
	var generic any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: parse json: %w", err)
	}
	adapted, err := AdaptTo(c.Registry, schema, generic)
	if err != nil {
		return nil, err
	}
	rec, ok := adapted.(*Record)
	if !ok {
		return nil, fmt.Errorf("codec: top-level json value is not a record: %w", ErrType)
	}
	return rec, nil
}

// toJSON converts a schema-conforming value into the plain
// map/slice/scalar shape encoding/json knows how to render, applying the
// spec's JSON-specific field/key ordering rules.
func (c *JSONCodec) toJSON(schema *Schema, v any) (any, error) {
	switch t := v.(type) {
	case *Record:
		obj := make(map[string]any, len(t.Schema.Fields))
		for _, f := range t.Schema.Fields {
			node, err := c.toJSON(f.Type, t.Get(f.Name))
			if err != nil {
				return nil, fmt.Errorf("codec: field %s.%s: %w", t.Schema.Name, f.Name, err)
			}
			obj[f.Name] = node
		}
		return orderedRecordJSON{schema: t.Schema, fields: obj}, nil
	case *OMap:
		pairs := make([][2]any, 0, t.Len())
		var err error
		valSchema := elemSchema(schema)
		t.Range(func(k string, val any) bool {
			var node any
			node, err = c.toJSON(valSchema, val)
			if err != nil {
				return false
			}
			pairs = append(pairs, [2]any{k, node})
			return true
		})
		if err != nil {
			return nil, err
		}
		return pairs, nil
	case uuid.UUID:
		return t.String(), nil
	case []byte:
		return string(t), nil
	case []any:
		valSchema := elemSchema(schema)
		out := make([]any, len(t))
		for i, item := range t {
			node, err := c.toJSON(valSchema, item)
			if err != nil {
				return nil, err
			}
			out[i] = node
		}
		if schema != nil && schema.Kind == KindSet {
			sort.Slice(out, func(i, j int) bool { return fmt.Sprint(out[i]) < fmt.Sprint(out[j]) })
		}
		return out, nil
	case map[string]any:
		valSchema := elemSchema(schema)
		out := make(map[string]any, len(t))
		for k, item := range t {
			node, err := c.toJSON(valSchema, item)
			if err != nil {
				return nil, err
			}
			out[k] = node
		}
		return out, nil
	default:
		return v, nil
	}
}

func elemSchema(schema *Schema) *Schema {
	if schema == nil {
		return nil
	}
	if schema.Items != nil {
		return schema.Items
	}
	return schema.Values
}

// orderedRecordJSON implements json.Marshaler to emit record fields in
// schema-declared order instead of Go's sorted-map-key default, since
// encoding/json always sorts map[string]any keys alphabetically.
type orderedRecordJSON struct {
	schema *Schema
	fields map[string]any
}

func (o orderedRecordJSON) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.schema.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := json.Marshal(o.fields[f.Name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
