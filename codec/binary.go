package codec

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// wireVersion and wireCodec are the two varints that open every boxed
// binary encoding (spec §4.2/§6): version=1, codec=0 (no compression).
const (
	wireVersion = 1
	wireCodec   = 0
)

// BinaryCodec encodes and decodes values against a Registry using the
// wire form of spec §4.2: a boxed value is
// [version:varint][codec:varint][type-tag:string][body]; a bare (un-
// boxed) value is just the body, used for subordinate encodings such as
// Key and for nested field bodies within a record.
type BinaryCodec struct {
	Registry *Registry
}

// NewBinaryCodec creates a codec bound to reg.
func NewBinaryCodec(reg *Registry) *BinaryCodec {
	return &BinaryCodec{Registry: reg}
}

// MarshalBinary encodes v (which must already conform to the schema
// registered under its type name) with the full boxed header. v must be
// a *Record, for which the type name is read off its Schema.
func (c *BinaryCodec) MarshalBinary(v any) ([]byte, error) {
	rec, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("codec: MarshalBinary requires a *Record, got %T: %w", v, ErrType)
	}
	var buf bytes.Buffer
	writeVarint(&buf, wireVersion)
	writeVarint(&buf, wireCodec)
	writeString(&buf, rec.Schema.Name.String())
	if err := c.encodeBody(&buf, rec.Schema, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a boxed value produced by MarshalBinary into
// out, which must be a non-nil **Record.
func (c *BinaryCodec) UnmarshalBinary(data []byte, out any) error {
	ptr, ok := out.(**Record)
	if !ok {
		return fmt.Errorf("codec: UnmarshalBinary requires a **Record, got %T: %w", out, ErrType)
	}
	r := bytes.NewReader(data)
	if _, err := readVarint(r); err != nil {
		return fmt.Errorf("codec: read version: %w", err)
	}
	if _, err := readVarint(r); err != nil {
		return fmt.Errorf("codec: read wire codec: %w", err)
	}
	tag, err := readString(r)
	if err != nil {
		return fmt.Errorf("codec: read type tag: %w", err)
	}
	schema, err := c.Registry.Lookup(NewTypeName(tag))
	if err != nil {
		return err
	}
	rec, err := c.decodeRecordBody(r, schema)
	if err != nil {
		return err
	}
	*ptr = rec
	return nil
}

// EncodeValue encodes v (conforming to schema) without the boxed header,
// for subordinate/nested use (e.g. union branch bodies, Key encoding).
func (c *BinaryCodec) EncodeValue(schema *Schema, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encodeBody(&buf, schema, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue decodes a bare body conforming to schema from r.
func (c *BinaryCodec) DecodeValue(schema *Schema, r *bytes.Reader) (any, error) {
	return c.decodeBody(r, schema)
}

func (c *BinaryCodec) encodeBody(buf *bytes.Buffer, schema *Schema, v any) error {
	switch schema.Kind {
	case KindNull:
		return nil
	case KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("codec: expected bool, got %T: %w", v, ErrType)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil
	case KindInt32:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		writeVarint(buf, n)
		return nil
	case KindInt64:
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		writeVarint(buf, n)
		return nil
	case KindFloat32:
		f, ok := v.(float32)
		if !ok {
			return fmt.Errorf("codec: expected float32, got %T: %w", v, ErrType)
		}
		writeFloat32(buf, f)
		return nil
	case KindFloat64:
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		writeFloat64(buf, f)
		return nil
	case KindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("codec: expected string, got %T: %w", v, ErrType)
		}
		writeString(buf, s)
		return nil
	case KindBytes:
		b, err := asBytes(v)
		if err != nil {
			return err
		}
		writeBytes(buf, b)
		return nil
	case KindFixed:
		b, err := asBytes(v)
		if err != nil {
			return err
		}
		if len(b) != schema.Size {
			return fmt.Errorf("codec: fixed(%s,%d) got %d bytes: %w", schema.Name, schema.Size, len(b), ErrType)
		}
		buf.Write(b)
		return nil
	case KindArray:
		return c.encodeArray(buf, schema, v)
	case KindSet:
		return c.encodeSet(buf, schema, v)
	case KindMap:
		return c.encodeMap(buf, schema, v)
	case KindOmap:
		return c.encodeOmap(buf, schema, v)
	case KindRecord:
		return c.encodeRecord(buf, schema, v)
	case KindUnion:
		return c.encodeUnion(buf, schema, v)
	default:
		return fmt.Errorf("codec: unknown schema kind %v: %w", schema.Kind, ErrType)
	}
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("codec: expected integer, got %T: %w", v, ErrType)
	}
}

func asFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("codec: expected float64, got %T: %w", v, ErrType)
	}
}

func asBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("codec: expected bytes, got %T: %w", v, ErrType)
	}
}

func asSeq(v any) ([]any, error) {
	seq, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected sequence, got %T: %w", v, ErrType)
	}
	return seq, nil
}

// encodeArray emits repeated blocks terminated by a zero count. A single
// block holds every item; the block-count scheme exists so a future
// encoder could chunk large arrays, but this implementation always emits
// one block (per spec §9's note on reading "-count" as a block-count,
// this writer only ever writes positive counts).
func (c *BinaryCodec) encodeArray(buf *bytes.Buffer, schema *Schema, v any) error {
	items, err := asSeq(v)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		writeVarint(buf, int64(len(items)))
		for _, item := range items {
			if err := c.encodeBody(buf, schema.Items, item); err != nil {
				return err
			}
		}
	}
	writeVarint(buf, 0)
	return nil
}

// encodeSet emits the set's unique items in sorted order by their own
// encoded bytes, deduplicating adjacent equal encodings (spec §4.2: "set
// is emitted as its sorted unique elements").
func (c *BinaryCodec) encodeSet(buf *bytes.Buffer, schema *Schema, v any) error {
	items, err := asSeq(v)
	if err != nil {
		return err
	}
	encoded := make([][]byte, 0, len(items))
	for _, item := range items {
		var b bytes.Buffer
		if err := c.encodeBody(&b, schema.Items, item); err != nil {
			return err
		}
		encoded = append(encoded, b.Bytes())
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })
	deduped := encoded[:0]
	for i, e := range encoded {
		if i > 0 && bytes.Equal(e, deduped[len(deduped)-1]) {
			continue
		}
		deduped = append(deduped, e)
	}
	if len(deduped) > 0 {
		writeVarint(buf, int64(len(deduped)))
		for _, e := range deduped {
			buf.Write(e)
		}
	}
	writeVarint(buf, 0)
	return nil
}

func asStringMap(v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected map, got %T: %w", v, ErrType)
	}
	return m, nil
}

// encodeMap emits entries sorted by key, per spec §4.2 determinism rules.
func (c *BinaryCodec) encodeMap(buf *bytes.Buffer, schema *Schema, v any) error {
	m, err := asStringMap(v)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		writeVarint(buf, int64(len(keys)))
		for _, k := range keys {
			writeString(buf, k)
			if err := c.encodeBody(buf, schema.Values, m[k]); err != nil {
				return err
			}
		}
	}
	writeVarint(buf, 0)
	return nil
}

// encodeOmap emits entries in the OMap's own insertion order (unsorted).
func (c *BinaryCodec) encodeOmap(buf *bytes.Buffer, schema *Schema, v any) error {
	om, ok := v.(*OMap)
	if !ok {
		return fmt.Errorf("codec: expected *OMap, got %T: %w", v, ErrType)
	}
	if om.Len() > 0 {
		writeVarint(buf, int64(om.Len()))
		var encErr error
		om.Range(func(k string, val any) bool {
			writeString(buf, k)
			if err := c.encodeBody(buf, schema.Values, val); err != nil {
				encErr = err
				return false
			}
			return true
		})
		if encErr != nil {
			return encErr
		}
	}
	writeVarint(buf, 0)
	return nil
}

// encodeRecord emits the concatenation of field bodies in declared
// (flattened, base-first) order.
func (c *BinaryCodec) encodeRecord(buf *bytes.Buffer, schema *Schema, v any) error {
	rec, ok := v.(*Record)
	if !ok {
		return fmt.Errorf("codec: expected *Record, got %T: %w", v, ErrType)
	}
	for _, f := range schema.Fields {
		if err := c.encodeBody(buf, f.Type, rec.Get(f.Name)); err != nil {
			return fmt.Errorf("codec: field %s.%s: %w", schema.Name, f.Name, err)
		}
	}
	return nil
}

// encodeUnion emits the selected branch's index then its body. The
// branch is the first one, in declared order, whose shape branchMatches
// v (a nil v selects the first null branch); no adaptation is attempted,
// so callers pass values already adapted to the exact branch type.
func (c *BinaryCodec) encodeUnion(buf *bytes.Buffer, schema *Schema, v any) error {
	for i, branch := range schema.Branches {
		if v == nil {
			if branch.Kind == KindNull {
				writeVarint(buf, int64(i))
				return nil
			}
			continue
		}
		if branchMatches(branch, v) {
			writeVarint(buf, int64(i))
			return c.encodeBody(buf, branch, v)
		}
	}
	return fmt.Errorf("codec: value %T matches no union branch: %w", v, ErrType)
}

// branchMatches performs a cheap type-shape match (not full adaptation)
// so the common case of already-typed Go values picks the correct branch
// without attempting every alternative's lossy coercions.
func branchMatches(branch *Schema, v any) bool {
	switch branch.Kind {
	case KindNull:
		return v == nil
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindInt32:
		_, ok := v.(int32)
		return ok
	case KindInt64:
		_, ok := v.(int64)
		return ok
	case KindFloat32:
		_, ok := v.(float32)
		return ok
	case KindFloat64:
		_, ok := v.(float64)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBytes, KindFixed:
		_, ok := v.([]byte)
		return ok
	case KindArray, KindSet:
		_, ok := v.([]any)
		return ok
	case KindMap:
		_, ok := v.(map[string]any)
		return ok
	case KindOmap:
		_, ok := v.(*OMap)
		return ok
	case KindRecord:
		rec, ok := v.(*Record)
		return ok && rec.Schema.Name.Qualified() == branch.Name.Qualified()
	default:
		return false
	}
}

func (c *BinaryCodec) decodeBody(r *bytes.Reader, schema *Schema) (any, error) {
	switch schema.Kind {
	case KindNull:
		return nil, nil
	case KindBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("codec: read bool: %w", err)
		}
		return b != 0, nil
	case KindInt32:
		n, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case KindInt64:
		return readVarint(r)
	case KindFloat32:
		return readFloat32(r)
	case KindFloat64:
		return readFloat64(r)
	case KindString:
		return readString(r)
	case KindBytes:
		return readBytes(r)
	case KindFixed:
		out := make([]byte, schema.Size)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, fmt.Errorf("codec: read fixed(%s): %w", schema.Name, err)
		}
		return out, nil
	case KindArray:
		return c.decodeArray(r, schema)
	case KindSet:
		return c.decodeArray(r, schema) // same wire shape; already sorted+deduped by the writer
	case KindMap:
		return c.decodeMap(r, schema)
	case KindOmap:
		return c.decodeOmap(r, schema)
	case KindRecord:
		return c.decodeRecordBody(r, schema)
	case KindUnion:
		return c.decodeUnion(r, schema)
	default:
		return nil, fmt.Errorf("codec: unknown schema kind %v: %w", schema.Kind, ErrType)
	}
}

// readBlockCount reads one Avro-style block-count prefix. A negative
// count is read as in the Avro spec: its magnitude is the item count,
// and it is followed by one more varint giving the block's byte size,
// which is consumed and not otherwise used since every item is decoded.
// This implementation never writes negative counts itself.
func readBlockCount(r *bytes.Reader) (int64, error) {
	n, err := readVarint(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		if _, err := readVarint(r); err != nil {
			return 0, fmt.Errorf("codec: read block size: %w", err)
		}
		n = -n
	}
	return n, nil
}

func (c *BinaryCodec) decodeArray(r *bytes.Reader, schema *Schema) ([]any, error) {
	var out []any
	for {
		n, err := readBlockCount(r)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for i := int64(0); i < n; i++ {
			item, err := c.decodeBody(r, schema.Items)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *BinaryCodec) decodeMap(r *bytes.Reader, schema *Schema) (map[string]any, error) {
	out := make(map[string]any)
	for {
		n, err := readBlockCount(r)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for i := int64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := c.decodeBody(r, schema.Values)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
	}
	return out, nil
}

func (c *BinaryCodec) decodeOmap(r *bytes.Reader, schema *Schema) (*OMap, error) {
	out := NewOMap()
	for {
		n, err := readBlockCount(r)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for i := int64(0); i < n; i++ {
			k, err := readString(r)
			if err != nil {
				return nil, err
			}
			v, err := c.decodeBody(r, schema.Values)
			if err != nil {
				return nil, err
			}
			out.Set(k, v)
		}
	}
	return out, nil
}

func (c *BinaryCodec) decodeRecordBody(r *bytes.Reader, schema *Schema) (*Record, error) {
	rec := NewRecord(schema)
	for _, f := range schema.Fields {
		v, err := c.decodeBody(r, f.Type)
		if err != nil {
			return nil, fmt.Errorf("codec: field %s.%s: %w", schema.Name, f.Name, err)
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}

func (c *BinaryCodec) decodeUnion(r *bytes.Reader, schema *Schema) (any, error) {
	idx, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	if idx < 0 || int(idx) >= len(schema.Branches) {
		return nil, fmt.Errorf("codec: union branch index %d out of range: %w", idx, ErrType)
	}
	return c.decodeBody(r, schema.Branches[idx])
}
