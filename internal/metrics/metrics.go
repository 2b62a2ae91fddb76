// Package metrics exposes the optional Prometheus counters/histograms for
// the CLI's metrics server: operation counts and durations for snapshot
// creation, diffing, and querying.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "snapbase_build_info",
			Help: "Build information of the snapbase CLI",
		},
		[]string{"version", "commit", "date"},
	)

	SnapshotsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapbase_snapshots_created_total",
			Help: "Total number of snapshots created",
		},
		[]string{"source", "status"},
	)

	SnapshotCreateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapbase_snapshot_create_duration_seconds",
			Help:    "Duration of snapshot creation",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source"},
	)

	DiffsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapbase_diffs_run_total",
			Help: "Total number of snapshot diffs run",
		},
		[]string{"source", "status"},
	)

	DiffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapbase_diff_duration_seconds",
			Help:    "Duration of snapshot diffs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"source"},
	)

	QueriesRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapbase_queries_run_total",
			Help: "Total number of queries executed against registered views",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapbase_query_duration_seconds",
			Help:    "Duration of query execution",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)
