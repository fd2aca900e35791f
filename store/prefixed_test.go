package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/store"
)

func TestPrefixedIsolatesNamespace(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))

	a := store.NewPrefixed("refs/a/", backing, nil)
	b := store.NewPrefixed("refs/b/", backing, nil)

	require.NoError(t, a.Set(ctx, []byte("HEAD"), []byte("commit-a")))
	require.NoError(t, b.Set(ctx, []byte("HEAD"), []byte("commit-b")))

	va, err := a.Get(ctx, []byte("HEAD"))
	require.NoError(t, err)
	assert.Equal(t, []byte("commit-a"), va)

	vb, err := b.Get(ctx, []byte("HEAD"))
	require.NoError(t, err)
	assert.Equal(t, []byte("commit-b"), vb)

	raw, err := backing.Get(ctx, []byte("refs/a/HEAD"))
	require.NoError(t, err)
	assert.Equal(t, []byte("commit-a"), raw)
}

func TestPrefixedMGetRestoresOriginalKeys(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemory(nil)
	require.NoError(t, backing.Open(ctx))
	p := store.NewPrefixed("objects/", backing, nil)

	require.NoError(t, p.Set(ctx, []byte("abc"), []byte("1")))
	entries, err := p.MGet(ctx, [][]byte{[]byte("abc"), []byte("missing")})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("abc"), entries[0].Key)
	assert.True(t, entries[0].Found)
	assert.Equal(t, []byte("missing"), entries[1].Key)
	assert.False(t, entries[1].Found)
}
