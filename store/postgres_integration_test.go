//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"zipperdb.dev/store"
)

func setupPostgresContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=testuser password=testpass dbname=testdb sslmode=disable", host, port.Port())

	return dsn, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

func TestPostgresIntegrationRoundTrip(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	ctx := context.Background()
	p, err := store.NewPostgres(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, p.Open(ctx))
	defer p.Close()

	require.NoError(t, p.Set(ctx, []byte("a"), []byte("hello")))
	v, err := p.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	_, tok, err := p.Gets(ctx, []byte("a"))
	require.NoError(t, err)
	require.NoError(t, p.Cas(ctx, []byte("a"), []byte("world"), tok))
	assert.ErrorIs(t, p.Cas(ctx, []byte("a"), []byte("nope"), tok), store.ErrNotStored)
}

func TestPostgresIntegrationAddDelete(t *testing.T) {
	dsn, cleanup := setupPostgresContainer(t)
	defer cleanup()

	ctx := context.Background()
	p, err := store.NewPostgres(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, p.Open(ctx))
	defer p.Close()

	require.NoError(t, p.Add(ctx, []byte("k"), []byte("v")))
	assert.ErrorIs(t, p.Add(ctx, []byte("k"), []byte("v2")), store.ErrNotStored)

	require.NoError(t, p.Delete(ctx, []byte("k")))
	assert.ErrorIs(t, p.Delete(ctx, []byte("k")), store.ErrNotFound)
}
