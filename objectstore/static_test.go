package objectstore_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
	"zipperdb.dev/metrics"
	"zipperdb.dev/objectstore"
	"zipperdb.dev/store"
)

const pageSchemaJSON = `{
  "type": "record",
  "name": "M.Page",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "body", "type": "string"}
  ]
}`

func newPageStore(t *testing.T) (*objectstore.StaticStore, *codec.Registry) {
	t.Helper()
	reg := codec.NewRegistry()
	_, err := reg.RegisterJSON([]byte(pageSchemaJSON))
	require.NoError(t, err)
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(context.Background()))
	bc := codec.NewBinaryCodec(reg)
	return objectstore.NewStaticStore(backing, bc), reg
}

func newPage(reg *codec.Registry, name, body string) *codec.Record {
	schema, _ := reg.Lookup(codec.NewTypeName("M.Page"))
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("body", body)
	return rec
}

func TestStaticStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	ss, reg := newPageStore(t)

	ref, canonical, err := ss.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, ref.Address)
	assert.Equal(t, "home", canonical.Get("name"))

	got, found, err := ss.Get(ctx, ref.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", got.Get("body"))
}

func TestStaticStorePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ss, reg := newPageStore(t)

	ref1, _, err := ss.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)
	ref2, _, err := ss.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)

	assert.Equal(t, ref1, ref2)
}

func TestStaticStoreGetMissingIsUndefined(t *testing.T) {
	ctx := context.Background()
	ss, _ := newPageStore(t)

	got, found, err := ss.Get(ctx, codec.Address("0000000000000000000000000000000000000000"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestStaticStoreCacheReturnsCanonicalInstance(t *testing.T) {
	ctx := context.Background()
	ss, reg := newPageStore(t)

	ref, put, err := ss.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)

	got, found, err := ss.Get(ctx, ref.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, put, got)
}

func TestStaticStoreDebugDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	reg := codec.NewRegistry()
	_, err := reg.RegisterJSON([]byte(pageSchemaJSON))
	require.NoError(t, err)
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	bc := codec.NewBinaryCodec(reg)

	writer := objectstore.NewStaticStore(backing, bc, objectstore.WithDebug(true))
	ref, _, err := writer.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)

	// corrupt the stored bytes directly through the backing store
	require.NoError(t, backing.Set(ctx, []byte(string(ref.Address)), []byte("corrupted")))

	// a fresh store has no cache, so this load must hit the backing store
	// and re-hash the (now corrupted) bytes.
	reader := objectstore.NewStaticStore(backing, bc, objectstore.WithDebug(true))
	_, _, err = reader.Get(ctx, ref.Address)
	assert.ErrorIs(t, err, objectstore.ErrBadObject)
}

func TestStaticStoreRecordsCacheHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	reg := codec.NewRegistry()
	_, err := reg.RegisterJSON([]byte(pageSchemaJSON))
	require.NoError(t, err)
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	bc := codec.NewBinaryCodec(reg)

	preg := prometheus.NewRegistry()
	m := metrics.New(preg, "test")
	ss := objectstore.NewStaticStore(backing, bc, objectstore.WithMetrics(m))

	ref, _, err := ss.Put(ctx, newPage(reg, "home", "hello"))
	require.NoError(t, err)

	// Put's own cacheInsert does not record a hit or a miss; only Get does.
	_, found, err := ss.Get(ctx, ref.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectCacheHits))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ObjectCacheMisses))

	fresh := objectstore.NewStaticStore(backing, bc, objectstore.WithMetrics(m))
	_, found, err = fresh.Get(ctx, ref.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ObjectCacheMisses))
}

func TestStaticStoreMPut(t *testing.T) {
	ctx := context.Background()
	ss, reg := newPageStore(t)

	refs, vals, err := ss.MPut(ctx, []*codec.Record{
		newPage(reg, "a", "A"),
		newPage(reg, "b", "B"),
	})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Len(t, vals, 2)
	assert.NotEqual(t, refs[0], refs[1])
}
