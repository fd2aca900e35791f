package store_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/metrics"
	"zipperdb.dev/store"
)

func TestInstrumentedRecordsOpsAndErrors(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")

	inner := store.NewMemory(nil)
	require.NoError(t, inner.Open(ctx))
	s := store.NewInstrumented("memory", inner, m)

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v")))
	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	_, err = s.Get(ctx, []byte("missing"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreOpTotal.WithLabelValues("memory", "set")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StoreOpTotal.WithLabelValues("memory", "get")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreOpErrors.WithLabelValues("memory", "get")))
}

func TestInstrumentedNilMetricsIsNoop(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemory(nil)
	require.NoError(t, inner.Open(ctx))
	s := store.NewInstrumented("memory", inner, nil)

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v")))
	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}
