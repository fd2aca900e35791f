package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/store"
)

func TestBoltRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := store.NewBolt(filepath.Join(t.TempDir(), "zipper.db"), nil)
	require.NoError(t, b.Open(ctx))
	defer b.Close()

	require.NoError(t, b.Set(ctx, []byte("a"), []byte("hello")))
	v, err := b.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestBoltCas(t *testing.T) {
	ctx := context.Background()
	b := store.NewBolt(filepath.Join(t.TempDir(), "zipper.db"), nil)
	require.NoError(t, b.Open(ctx))
	defer b.Close()

	require.NoError(t, b.Set(ctx, []byte("k"), []byte("v1")))
	_, tok, err := b.Gets(ctx, []byte("k"))
	require.NoError(t, err)

	require.NoError(t, b.Cas(ctx, []byte("k"), []byte("v2"), tok))
	assert.ErrorIs(t, b.Cas(ctx, []byte("k"), []byte("v3"), tok), store.ErrNotStored)
}

func TestBoltAddDelete(t *testing.T) {
	ctx := context.Background()
	b := store.NewBolt(filepath.Join(t.TempDir(), "zipper.db"), nil)
	require.NoError(t, b.Open(ctx))
	defer b.Close()

	require.NoError(t, b.Add(ctx, []byte("k"), []byte("v")))
	assert.ErrorIs(t, b.Add(ctx, []byte("k"), []byte("v2")), store.ErrNotStored)

	require.NoError(t, b.Delete(ctx, []byte("k")))
	assert.ErrorIs(t, b.Delete(ctx, []byte("k")), store.ErrNotFound)
}
