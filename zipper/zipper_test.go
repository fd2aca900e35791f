package zipper_test

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
	"zipperdb.dev/zipper"
)

const pageSchemaJSON = `{
  "type": "record",
  "name": "M.Page",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "body", "type": "string"}
  ]
}`

func newTestZipper(t *testing.T) (*zipper.Zipper, *codec.Registry) {
	t.Helper()
	reg := codec.NewRegistry()
	require.NoError(t, zipper.RegisterSchemas(reg))
	_, err := reg.RegisterJSON([]byte(pageSchemaJSON))
	require.NoError(t, err)

	ctx := context.Background()
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	bc := codec.NewBinaryCodec(reg)
	objects := objectstore.NewStaticStore(backing, bc, objectstore.WithPrefix("objects/"))

	headBacking := store.NewPrefixed("refs/main/", backing, nil)
	z := zipper.New(headBacking, objects, reg, nil)
	require.NoError(t, z.Open(ctx))
	require.NoError(t, z.Create(ctx, "tester", 0))
	return z, reg
}

func newPageRecord(reg *codec.Registry, name, body string) *codec.Record {
	schema, _ := reg.Lookup(codec.NewTypeName("M.Page"))
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("body", body)
	return rec
}

func TestZipperCommitThenGet(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	err = z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "add home", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "hello")),
		})
	})
	require.NoError(t, err)

	got, found, err := z.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello", got.Get("body"))
}

func TestZipperCheckpointShadowsManifestUntilCommit(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	// first, commit a baseline value.
	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "add home", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "v1")),
		})
	}))

	// then checkpoint a change without committing.
	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Checkpoint(ctx, "tester", "edit home", 2, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "v2")),
		})
	}))

	got, found, err := z.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", got.Get("body"))
}

func TestZipperDeleteHidesKeyInWorkingView(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "add home", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "v1")),
		})
	}))

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Checkpoint(ctx, "tester", "delete home", 2, zipper.Delta{
			key: zipper.Delete(),
		})
	}))

	_, found, err := z.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestZipperFindByKind(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	home, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)
	about, err := codec.NewKey(codec.NewTypeName("M.Page"), "about")
	require.NoError(t, err)

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "seed", 1, zipper.Delta{
			home:  zipper.Value(newPageRecord(reg, "home", "h")),
			about: zipper.Value(newPageRecord(reg, "about", "a")),
		})
	}))

	found, err := z.Find(codec.NewTypeName("M.Page"))
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestZipperAmendReplacesTopCheckpoint(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Checkpoint(ctx, "tester", "add home", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "v1")),
		})
	}))

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Amend(ctx, "tester", "amend home", 2, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "v1-amended")),
		})
	}))

	got, found, err := z.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1-amended", got.Get("body"))
}

func TestZipperTransactionFailedOnStaleToken(t *testing.T) {
	ctx := context.Background()
	z, reg := newTestZipper(t)

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	oldHead, tok, err := z.BeginTransaction(ctx)
	require.NoError(t, err)

	// a concurrent writer lands a commit first, invalidating tok.
	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "concurrent", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "concurrent")),
		})
	}))

	ckpt, err := z.Checkpoint(ctx, "tester", "stale", 2, zipper.Delta{
		key: zipper.Value(newPageRecord(reg, "home", "stale")),
	})
	require.NoError(t, err)

	err = z.EndTransaction(ctx, oldHead, tok, ckpt)
	assert.ErrorIs(t, err, zipper.ErrTransactionFailed)
}

func TestZipperObservesCommitsAndCASConflicts(t *testing.T) {
	ctx := context.Background()
	reg := codec.NewRegistry()
	require.NoError(t, zipper.RegisterSchemas(reg))
	_, err := reg.RegisterJSON([]byte(pageSchemaJSON))
	require.NoError(t, err)

	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	bc := codec.NewBinaryCodec(reg)
	objects := objectstore.NewStaticStore(backing, bc, objectstore.WithPrefix("objects/"))

	preg := prometheus.NewRegistry()
	m := metrics.New(preg, "test")

	headBacking := store.NewPrefixed("refs/main/", backing, nil)
	z := zipper.New(headBacking, objects, reg, nil, zipper.WithMetrics(m))
	require.NoError(t, z.Open(ctx))
	require.NoError(t, z.Create(ctx, "tester", 0))

	key, err := codec.NewKey(codec.NewTypeName("M.Page"), "home")
	require.NoError(t, err)

	oldHead, tok, err := z.BeginTransaction(ctx)
	require.NoError(t, err)

	require.NoError(t, z.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, "tester", "concurrent", 1, zipper.Delta{
			key: zipper.Value(newPageRecord(reg, "home", "concurrent")),
		})
	}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ZipperCommitTotal.WithLabelValues("ok")))

	ckpt, err := z.Checkpoint(ctx, "tester", "stale", 2, zipper.Delta{
		key: zipper.Value(newPageRecord(reg, "home", "stale")),
	})
	require.NoError(t, err)

	err = z.EndTransaction(ctx, oldHead, tok, ckpt)
	assert.ErrorIs(t, err, zipper.ErrTransactionFailed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ZipperCASConflicts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ZipperCommitTotal.WithLabelValues("error")))
}
