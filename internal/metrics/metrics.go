// Package metrics holds the Prometheus collectors for graph builds and
// source access.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphBuilds counts builds by traversal mode and outcome.
	GraphBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notegraph_builds_total",
			Help: "Total number of graph builds",
		},
		[]string{"mode", "result"},
	)

	// GraphBuildDuration measures how long a build takes end to end.
	GraphBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notegraph_build_duration_seconds",
			Help:    "Duration of graph builds in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"mode"},
	)

	// GraphSize tracks the node and edge counts of the last build.
	GraphSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notegraph_last_build_size",
			Help: "Number of nodes and edges in the last built graph",
		},
		[]string{"kind"},
	)

	// FetchFailures counts per-identifier lookups dropped during traversal.
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notegraph_fetch_failures_total",
			Help: "Per-identifier lookups that failed and were dropped",
		},
		[]string{"kind"},
	)

	// SourceRequests counts requests issued to a record source.
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notegraph_source_requests_total",
			Help: "Requests issued to the record source",
		},
		[]string{"source", "resource"},
	)

	// IndexRows tracks the row counts of the SQLite store after each sync.
	IndexRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notegraph_index_rows",
			Help: "Rows in the local note store",
		},
		[]string{"table"},
	)

	// SnapshotPublishes counts graph snapshots handed to viewers, by trigger.
	SnapshotPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notegraph_snapshot_publishes_total",
			Help: "Graph snapshots published to viewers",
		},
		[]string{"reason"},
	)
)
