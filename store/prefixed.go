package store

import (
	"bytes"
	"context"
)

// Codec is the narrow slice of codec.Codec that Prefixed needs: marshal
// to and unmarshal from the binary wire form. Declared locally so the
// store package does not import the codec package.
type Codec interface {
	MarshalBinary(v any) ([]byte, error)
	UnmarshalBinary(data []byte, out any) error
}

// Prefixed decorates a BackingStore by prepending a fixed byte prefix to
// every key before delegating. The BackingStore methods pass raw bytes
// through unchanged; GetValue/SetValue additionally marshal/unmarshal
// values through a Codec. Used by vault to partition a shared store into
// per-branch keyspaces ("refs/<branch>/").
type Prefixed struct {
	prefix []byte
	inner  BackingStore
	codec  Codec
}

// NewPrefixed creates a decorator that prepends prefix to every key
// delegated to inner. codec is used only by GetValue/SetValue and may be
// nil if the caller only uses the raw byte operations.
func NewPrefixed(prefix string, inner BackingStore, codec Codec) *Prefixed {
	return &Prefixed{prefix: []byte(prefix), inner: inner, codec: codec}
}

func (p *Prefixed) withPrefix(key []byte) []byte {
	return append(append([]byte{}, p.prefix...), key...)
}

func (p *Prefixed) Open(ctx context.Context) error    { return p.inner.Open(ctx) }
func (p *Prefixed) Close() error                      { return p.inner.Close() }
func (p *Prefixed) Destroy(ctx context.Context) error { return p.inner.Destroy(ctx) }

func (p *Prefixed) Get(ctx context.Context, key []byte) ([]byte, error) {
	return p.inner.Get(ctx, p.withPrefix(key))
}

func (p *Prefixed) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	prefixed := make([][]byte, len(keys))
	for i, k := range keys {
		prefixed[i] = p.withPrefix(k)
	}
	entries, err := p.inner.MGet(ctx, prefixed)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Key = keys[i]
	}
	return entries, nil
}

func (p *Prefixed) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	return p.inner.Gets(ctx, p.withPrefix(key))
}

func (p *Prefixed) Set(ctx context.Context, key, value []byte) error {
	return p.inner.Set(ctx, p.withPrefix(key), value)
}

func (p *Prefixed) MSet(ctx context.Context, pairs []KV) error {
	prefixed := make([]KV, len(pairs))
	for i, kv := range pairs {
		prefixed[i] = KV{Key: p.withPrefix(kv.Key), Value: kv.Value}
	}
	return p.inner.MSet(ctx, prefixed)
}

func (p *Prefixed) Add(ctx context.Context, key, value []byte) error {
	return p.inner.Add(ctx, p.withPrefix(key), value)
}

func (p *Prefixed) MAdd(ctx context.Context, pairs []KV) error {
	prefixed := make([]KV, len(pairs))
	for i, kv := range pairs {
		prefixed[i] = KV{Key: p.withPrefix(kv.Key), Value: kv.Value}
	}
	return p.inner.MAdd(ctx, prefixed)
}

func (p *Prefixed) Replace(ctx context.Context, key, value []byte) error {
	return p.inner.Replace(ctx, p.withPrefix(key), value)
}

func (p *Prefixed) MReplace(ctx context.Context, pairs []KV) error {
	prefixed := make([]KV, len(pairs))
	for i, kv := range pairs {
		prefixed[i] = KV{Key: p.withPrefix(kv.Key), Value: kv.Value}
	}
	return p.inner.MReplace(ctx, prefixed)
}

func (p *Prefixed) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	return p.inner.Cas(ctx, p.withPrefix(key), value, tok)
}

func (p *Prefixed) Delete(ctx context.Context, key []byte) error {
	return p.inner.Delete(ctx, p.withPrefix(key))
}

func (p *Prefixed) MDelete(ctx context.Context, keys [][]byte) error {
	prefixed := make([][]byte, len(keys))
	for i, k := range keys {
		prefixed[i] = p.withPrefix(k)
	}
	return p.inner.MDelete(ctx, prefixed)
}

// GetValue reads key, decoding it through codec into out.
func (p *Prefixed) GetValue(ctx context.Context, key []byte, out any) error {
	raw, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	return p.codec.UnmarshalBinary(raw, out)
}

// SetValue encodes v through codec and writes it unconditionally.
func (p *Prefixed) SetValue(ctx context.Context, key []byte, v any) error {
	raw, err := p.codec.MarshalBinary(v)
	if err != nil {
		return err
	}
	return p.Set(ctx, key, raw)
}

// HasPrefix reports whether a raw (unprefixed-view) key belongs to this
// decorator's namespace, given the full underlying key.
func (p *Prefixed) HasPrefix(fullKey []byte) bool {
	return bytes.HasPrefix(fullKey, p.prefix)
}

// TrimPrefix strips this decorator's prefix from a full underlying key.
func (p *Prefixed) TrimPrefix(fullKey []byte) []byte {
	return bytes.TrimPrefix(fullKey, p.prefix)
}
