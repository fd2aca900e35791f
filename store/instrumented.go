package store

import (
	"context"
	"time"

	"zipperdb.dev/metrics"
)

// Instrumented decorates a BackingStore, recording the latency, count, and
// error rate of every call against m under the given backend label. A nil
// m makes every record a no-op, so wrapping is safe even when a process
// runs without a metrics registry.
type Instrumented struct {
	backend string
	inner   BackingStore
	metrics *metrics.Metrics
}

// NewInstrumented wraps inner so every BackingStore call is observed under
// backend (e.g. "memory", "fsdir", "bolt", "redis", "postgres") via m.
func NewInstrumented(backend string, inner BackingStore, m *metrics.Metrics) *Instrumented {
	return &Instrumented{backend: backend, inner: inner, metrics: m}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.metrics.ObserveStoreOp(i.backend, op, time.Since(start), err)
}

func (i *Instrumented) Open(ctx context.Context) error    { return i.inner.Open(ctx) }
func (i *Instrumented) Close() error                      { return i.inner.Close() }
func (i *Instrumented) Destroy(ctx context.Context) error { return i.inner.Destroy(ctx) }

func (i *Instrumented) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	v, err := i.inner.Get(ctx, key)
	i.observe("get", start, err)
	return v, err
}

func (i *Instrumented) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	start := time.Now()
	entries, err := i.inner.MGet(ctx, keys)
	i.observe("mget", start, err)
	return entries, err
}

func (i *Instrumented) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	start := time.Now()
	v, tok, err := i.inner.Gets(ctx, key)
	i.observe("gets", start, err)
	return v, tok, err
}

func (i *Instrumented) Set(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := i.inner.Set(ctx, key, value)
	i.observe("set", start, err)
	return err
}

func (i *Instrumented) MSet(ctx context.Context, pairs []KV) error {
	start := time.Now()
	err := i.inner.MSet(ctx, pairs)
	i.observe("mset", start, err)
	return err
}

func (i *Instrumented) Add(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := i.inner.Add(ctx, key, value)
	i.observe("add", start, err)
	return err
}

func (i *Instrumented) MAdd(ctx context.Context, pairs []KV) error {
	start := time.Now()
	err := i.inner.MAdd(ctx, pairs)
	i.observe("madd", start, err)
	return err
}

func (i *Instrumented) Replace(ctx context.Context, key, value []byte) error {
	start := time.Now()
	err := i.inner.Replace(ctx, key, value)
	i.observe("replace", start, err)
	return err
}

func (i *Instrumented) MReplace(ctx context.Context, pairs []KV) error {
	start := time.Now()
	err := i.inner.MReplace(ctx, pairs)
	i.observe("mreplace", start, err)
	return err
}

func (i *Instrumented) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	start := time.Now()
	err := i.inner.Cas(ctx, key, value, tok)
	i.observe("cas", start, err)
	return err
}

func (i *Instrumented) Delete(ctx context.Context, key []byte) error {
	start := time.Now()
	err := i.inner.Delete(ctx, key)
	i.observe("delete", start, err)
	return err
}

func (i *Instrumented) MDelete(ctx context.Context, keys [][]byte) error {
	start := time.Now()
	err := i.inner.MDelete(ctx, keys)
	i.observe("mdelete", start, err)
	return err
}
