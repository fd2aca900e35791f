package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/store"
)

func newTestRedis(t *testing.T) *store.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return store.NewRedisClient(client, nil)
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	require.NoError(t, r.Open(ctx))

	require.NoError(t, r.Set(ctx, []byte("a"), []byte("hello")))
	v, err := r.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	_, err = r.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisAddCas(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	require.NoError(t, r.Open(ctx))

	require.NoError(t, r.Add(ctx, []byte("k"), []byte("v1")))
	assert.ErrorIs(t, r.Add(ctx, []byte("k"), []byte("v2")), store.ErrNotStored)

	_, tok, err := r.Gets(ctx, []byte("k"))
	require.NoError(t, err)
	require.NoError(t, r.Cas(ctx, []byte("k"), []byte("v2"), tok))
	assert.ErrorIs(t, r.Cas(ctx, []byte("k"), []byte("v3"), tok), store.ErrNotStored)
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	require.NoError(t, r.Open(ctx))

	require.NoError(t, r.Set(ctx, []byte("k"), []byte("v")))
	require.NoError(t, r.Delete(ctx, []byte("k")))
	assert.ErrorIs(t, r.Delete(ctx, []byte("k")), store.ErrNotFound)
}
