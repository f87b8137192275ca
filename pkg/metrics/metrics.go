// Package metrics is the ambient observability layer SPEC_FULL.md adds:
// the spec's non-goals name SQL parsing, multi-writer concurrency, and
// synchronous remote persistence, never metrics, so checkpoint duration,
// GC bytes reclaimed, ingest lag, and wait_lsn timeouts are all exported
// here via promauto, the way the pack's storage-adjacent services
// (thanos/mimir block fetchers) register their counters and histograms
// against a caller-supplied prometheus.Registerer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram this storage core exports.
type Metrics struct {
	CheckpointRuns       prometheus.Counter
	CheckpointDuration   prometheus.Histogram
	CheckpointBlocksDone prometheus.Counter

	GCRuns                prometheus.Counter
	GCDuration            prometheus.Histogram
	GCDataVersionsDeleted prometheus.Counter
	GCMetadataRowsDeleted prometheus.Counter

	IngestLagSeconds prometheus.Histogram
	WaitLsnTimeouts  prometheus.Counter
}

// New registers every metric against reg and returns the bundle. reg may
// be prometheus.NewRegistry() in tests or prometheus.DefaultRegisterer in
// a deployed process.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckpointRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "checkpoint",
			Name:      "runs_total",
			Help:      "Number of checkpoint passes completed.",
		}),
		CheckpointDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pageserver",
			Subsystem: "checkpoint",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a checkpoint pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		CheckpointBlocksDone: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "checkpoint",
			Name:      "blocks_materialized_total",
			Help:      "Blocks whose delta chain was collapsed into a fresh image.",
		}),
		GCRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "gc",
			Name:      "runs_total",
			Help:      "Number of gc_iteration passes completed.",
		}),
		GCDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pageserver",
			Subsystem: "gc",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a gc_iteration pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		GCDataVersionsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "gc",
			Name:      "data_versions_deleted_total",
			Help:      "Data key/value rows removed by garbage collection.",
		}),
		GCMetadataRowsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "gc",
			Name:      "metadata_rows_deleted_total",
			Help:      "Metadata key/value rows removed by garbage collection.",
		}),
		IngestLagSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pageserver",
			Subsystem: "ingest",
			Name:      "lag_seconds",
			Help:      "Age of the most recently ingested WAL record's feedback timestamp.",
			Buckets:   prometheus.DefBuckets,
		}),
		WaitLsnTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pageserver",
			Subsystem: "timeline",
			Name:      "wait_lsn_timeouts_total",
			Help:      "wait_lsn calls that hit the 60s deadline without the gate advancing far enough.",
		}),
	}
}

// ObserveIngestLag records the age of a feedback message's wall-clock
// timestamp relative to now.
func (m *Metrics) ObserveIngestLag(wallTs time.Time) {
	m.IngestLagSeconds.Observe(time.Since(wallTs).Seconds())
}
