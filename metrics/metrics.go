// Package metrics instruments a zipperdb process with Prometheus
// counters and histograms, following the teacher's tracing.Metrics
// promauto idiom: one struct of pre-registered collectors, built once at
// startup and passed to the packages that record against it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector a running zipperdb process exposes.
type Metrics struct {
	StoreOpDuration *prometheus.HistogramVec
	StoreOpTotal    *prometheus.CounterVec
	StoreOpErrors   *prometheus.CounterVec

	ObjectCacheHits   prometheus.Counter
	ObjectCacheMisses prometheus.Counter

	ZipperCommitDuration prometheus.Histogram
	ZipperCommitTotal    *prometheus.CounterVec
	ZipperCASConflicts   prometheus.Counter

	QueryDuration *prometheus.HistogramVec
	QueryErrors   prometheus.Counter
}

// New creates and registers every collector under namespace (empty
// defaults to "zipperdb") against registry. Pass prometheus.DefaultRegisterer
// for a process's global registry, or prometheus.NewRegistry() for an
// isolated one (tests construct a fresh registry per call so repeated New
// calls with the same namespace don't collide on duplicate registration).
func New(registry prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "zipperdb"
	}
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_op_duration_seconds",
				Help:      "Duration of BackingStore operations.",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "op"},
		),
		StoreOpTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_ops_total",
				Help:      "Total BackingStore operations.",
			},
			[]string{"backend", "op"},
		),
		StoreOpErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_op_errors_total",
				Help:      "Total BackingStore operation errors.",
			},
			[]string{"backend", "op"},
		),

		ObjectCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objectstore_cache_hits_total",
				Help:      "StaticStore reads served from the read-through cache.",
			},
		),
		ObjectCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objectstore_cache_misses_total",
				Help:      "StaticStore reads that fell through to the backing store.",
			},
		),

		ZipperCommitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "zipper_commit_duration_seconds",
				Help:      "Duration of Zipper.EndTransaction, one HEAD CAS attempt.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ZipperCommitTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zipper_commits_total",
				Help:      "Total Zipper.EndTransaction calls by outcome.",
			},
			[]string{"status"},
		),
		ZipperCASConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zipper_cas_conflicts_total",
				Help:      "Total HEAD compare-and-set conflicts lost to a concurrent writer.",
			},
		),

		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Duration of a compiled query Run.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		QueryErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_errors_total",
				Help:      "Total query evaluation errors.",
			},
		),
	}
}

// ObserveStoreOp records one BackingStore call's outcome and latency. A
// nil *Metrics is a no-op, the same optionality the *logrus.Entry
// parameters elsewhere in this module support.
func (m *Metrics) ObserveStoreOp(backend, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	m.StoreOpTotal.WithLabelValues(backend, op).Inc()
	if err != nil {
		m.StoreOpErrors.WithLabelValues(backend, op).Inc()
	}
}

// ObserveCommit records one Zipper.EndTransaction call. Nil-safe.
func (m *Metrics) ObserveCommit(d time.Duration, conflicts int, err error) {
	if m == nil {
		return
	}
	m.ZipperCommitDuration.Observe(d.Seconds())
	m.ZipperCASConflicts.Add(float64(conflicts))
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ZipperCommitTotal.WithLabelValues(status).Inc()
}

// ObserveQuery records one query Run. Nil-safe.
func (m *Metrics) ObserveQuery(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.QueryErrors.Inc()
	}
	m.QueryDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordCacheHit increments the objectstore read-through cache hit
// counter. Nil-safe.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.ObjectCacheHits.Inc()
}

// RecordCacheMiss increments the objectstore read-through cache miss
// counter. Nil-safe.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.ObjectCacheMisses.Inc()
}
