package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Adapter lifts a generic decoded value (string, float64, map[string]any,
// []any — the shapes produced by encoding/json and by the JSON codec's
// own intermediate form) into the schema-conforming representation the
// binary codec expects (int32, int64, *Record, *OMap, ...). Adaptation
// recurses through complex types; a value that cannot be lifted raises
// ErrType. Grounded on the original `mdb/avro/types.py` adapter hooks
// (spec §9 "Dynamic dispatch to codec handlers").
type Adapter interface {
	Adapt(v any) (any, error)
}

// AdaptTo recursively adapts v to conform to schema, using reg to resolve
// record field types and any nested references.
func AdaptTo(reg *Registry, schema *Schema, v any) (any, error) {
	switch schema.Kind {
	case KindNull:
		if v != nil {
			return nil, fmt.Errorf("codec: expected null, got %T: %w", v, ErrType)
		}
		return nil, nil
	case KindBoolean:
		return adaptBool(v)
	case KindInt32:
		return adaptInt(v, 32)
	case KindInt64:
		return adaptInt(v, 64)
	case KindFloat32:
		f, err := adaptFloat(v)
		return float32(f), err
	case KindFloat64:
		return adaptFloat(v)
	case KindString:
		return adaptString(v)
	case KindBytes, KindFixed:
		return adaptBytes(v)
	case KindArray, KindSet:
		return adaptSeq(reg, schema, v)
	case KindMap:
		return adaptMap(reg, schema, v)
	case KindOmap:
		return adaptOmap(reg, schema, v)
	case KindRecord:
		return adaptRecord(reg, schema, v)
	case KindUnion:
		return adaptUnion(reg, schema, v)
	default:
		return nil, fmt.Errorf("codec: unadaptable schema kind %v: %w", schema.Kind, ErrType)
	}
}

func adaptBool(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("codec: expected boolean, got %T: %w", v, ErrType)
}

func adaptInt(v any, bits int) (any, error) {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case float64:
		n = int64(t)
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("codec: expected int%d, got %q: %w", bits, t, ErrType)
		}
		n = parsed
	case json.Number:
		parsed, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("codec: expected int%d, got %q: %w", bits, t, ErrType)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("codec: expected int%d, got %T: %w", bits, v, ErrType)
	}
	if bits == 32 {
		return int32(n), nil
	}
	return n, nil
}

func adaptFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("codec: expected float, got %q: %w", t, ErrType)
		}
		return f, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("codec: expected float, got %q: %w", t, ErrType)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("codec: expected float, got %T: %w", v, ErrType)
	}
}

func adaptString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("codec: expected string, got %T: %w", v, ErrType)
}

func adaptBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("codec: expected bytes, got %T: %w", v, ErrType)
	}
}

func adaptSeq(reg *Registry, schema *Schema, v any) ([]any, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected sequence, got %T: %w", v, ErrType)
	}
	out := make([]any, len(raw))
	for i, item := range raw {
		adapted, err := AdaptTo(reg, schema.Items, item)
		if err != nil {
			return nil, err
		}
		out[i] = adapted
	}
	return out, nil
}

func adaptMap(reg *Registry, schema *Schema, v any) (map[string]any, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected map, got %T: %w", v, ErrType)
	}
	out := make(map[string]any, len(raw))
	for k, item := range raw {
		adapted, err := AdaptTo(reg, schema.Values, item)
		if err != nil {
			return nil, err
		}
		out[k] = adapted
	}
	return out, nil
}

func adaptOmap(reg *Registry, schema *Schema, v any) (*OMap, error) {
	if om, ok := v.(*OMap); ok {
		return om, nil
	}
	out := NewOMap()
	switch raw := v.(type) {
	case map[string]any:
		for k, item := range raw {
			adapted, err := AdaptTo(reg, schema.Values, item)
			if err != nil {
				return nil, err
			}
			out.Set(k, adapted)
		}
	case [][2]any:
		for _, pair := range raw {
			k, ok := pair[0].(string)
			if !ok {
				return nil, fmt.Errorf("codec: omap key must be string, got %T: %w", pair[0], ErrType)
			}
			adapted, err := AdaptTo(reg, schema.Values, pair[1])
			if err != nil {
				return nil, err
			}
			out.Set(k, adapted)
		}
	case []any:
		for _, pair := range raw {
			kv, ok := pair.([]any)
			if !ok || len(kv) != 2 {
				return nil, fmt.Errorf("codec: expected [k,v] pair, got %T: %w", pair, ErrType)
			}
			k, ok := kv[0].(string)
			if !ok {
				return nil, fmt.Errorf("codec: omap key must be string, got %T: %w", kv[0], ErrType)
			}
			adapted, err := AdaptTo(reg, schema.Values, kv[1])
			if err != nil {
				return nil, err
			}
			out.Set(k, adapted)
		}
	default:
		return nil, fmt.Errorf("codec: expected omap, got %T: %w", v, ErrType)
	}
	return out, nil
}

func adaptRecord(reg *Registry, schema *Schema, v any) (*Record, error) {
	if rec, ok := v.(*Record); ok {
		return rec, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected record %s, got %T: %w", schema.Name, v, ErrType)
	}
	rec := NewRecord(schema)
	for _, f := range schema.Fields {
		fv, present := raw[f.Name]
		if !present {
			continue
		}
		adapted, err := AdaptTo(reg, f.Type, fv)
		if err != nil {
			return nil, fmt.Errorf("codec: field %s.%s: %w", schema.Name, f.Name, err)
		}
		rec.Set(f.Name, adapted)
	}
	return rec, nil
}

// adaptUnion tries each branch in declared order and accepts the first
// one that adapts cleanly; null is matched only by an explicit null
// branch, and a nil v fails if no branch is KindNull.
func adaptUnion(reg *Registry, schema *Schema, v any) (any, error) {
	for _, branch := range schema.Branches {
		if v == nil && branch.Kind != KindNull {
			continue
		}
		adapted, err := AdaptTo(reg, branch, v)
		if err == nil {
			return adapted, nil
		}
	}
	return nil, fmt.Errorf("codec: value does not match any union branch: %w", ErrType)
}
