package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/store"
)

func TestFsDirRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := store.NewFsDir(dir, nil)
	require.NoError(t, f.Open(ctx))
	defer f.Close()

	require.NoError(t, f.Set(ctx, []byte("a"), []byte("hello")))
	v, err := f.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	_, err = f.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFsDirAddReplace(t *testing.T) {
	ctx := context.Background()
	f := store.NewFsDir(t.TempDir(), nil)
	require.NoError(t, f.Open(ctx))

	require.NoError(t, f.Add(ctx, []byte("k"), []byte("v1")))
	assert.ErrorIs(t, f.Add(ctx, []byte("k"), []byte("v2")), store.ErrNotStored)
	assert.ErrorIs(t, f.Replace(ctx, []byte("absent"), []byte("v")), store.ErrNotStored)
	require.NoError(t, f.Replace(ctx, []byte("k"), []byte("v3")))

	v, _ := f.Get(ctx, []byte("k"))
	assert.Equal(t, []byte("v3"), v)
}

func TestFsDirCas(t *testing.T) {
	ctx := context.Background()
	f := store.NewFsDir(t.TempDir(), nil)
	require.NoError(t, f.Open(ctx))
	require.NoError(t, f.Set(ctx, []byte("k"), []byte("v1")))

	_, tok, err := f.Gets(ctx, []byte("k"))
	require.NoError(t, err)
	require.NoError(t, f.Cas(ctx, []byte("k"), []byte("v2"), tok))

	err = f.Cas(ctx, []byte("k"), []byte("v3"), tok)
	assert.ErrorIs(t, err, store.ErrNotStored)
}

func TestFsDirDestroy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := store.NewFsDir(dir, nil)
	require.NoError(t, f.Open(ctx))
	require.NoError(t, f.Set(ctx, []byte("k"), []byte("v")))
	require.NoError(t, f.Destroy(ctx))

	require.NoError(t, f.Open(ctx))
	_, err := f.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
