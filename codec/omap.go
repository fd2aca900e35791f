package codec

// OMap is an insertion-ordered map over string keys — the host
// representation of the schema's omap(values) type. Unlike a plain Go
// map, iteration order is preserved; unlike Map, that order is NOT sorted
// at encode time (spec §4.2: "omap preserves insertion order").
type OMap struct {
	keys []string
	vals map[string]any
}

// NewOMap creates an empty ordered map.
func NewOMap() *OMap {
	return &OMap{vals: make(map[string]any)}
}

// Set inserts or updates k. Updating an existing key does not change its
// position in iteration order.
func (o *OMap) Set(k string, v any) {
	if _, exists := o.vals[k]; !exists {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

// Get returns the value at k and whether it was present.
func (o *OMap) Get(k string) (any, bool) {
	v, ok := o.vals[k]
	return v, ok
}

// Delete removes k, if present.
func (o *OMap) Delete(k string) {
	if _, ok := o.vals[k]; !ok {
		return
	}
	delete(o.vals, k)
	for i, key := range o.keys {
		if key == k {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *OMap) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *OMap) Len() int { return len(o.keys) }

// Range calls fn for every entry in insertion order, stopping early if
// fn returns false.
func (o *OMap) Range(fn func(k string, v any) bool) {
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}
