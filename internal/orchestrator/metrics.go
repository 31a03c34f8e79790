package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Batch outcomes.
const (
	OutcomeResolved    = "resolved"     // every candidate got a rank
	OutcomeCompleted   = "completed"    // stream ended with some ranks
	OutcomeEmpty       = "empty"        // stream ended with no usable rank
	OutcomeTimeout     = "timeout"      // soft timeout with no rank
	OutcomeHardTimeout = "hard_timeout" // hard timeout while resolving
	OutcomeEngineError = "engine_error" // conversation failed
	OutcomeStale       = "stale"        // request superseded mid-batch
)

// Stale checkpoints.
const (
	CheckpointStart    = "start"
	CheckpointBatch    = "batch"
	CheckpointGate     = "gate"
	CheckpointPartial  = "partial"
	CheckpointFinal    = "final"
	CheckpointFragment = "fragment"
)

// Metrics holds Prometheus metrics for the ranking orchestrator.
type Metrics struct {
	AnalysesTotal      *prometheus.CounterVec
	BatchesTotal       *prometheus.CounterVec
	BatchDuration      *prometheus.HistogramVec
	StaleDropsTotal    *prometheus.CounterVec
	ResolutionsTotal   *prometheus.CounterVec
	FilterRejectsTotal *prometheus.CounterVec
	SnapshotsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the orchestrator metrics once per
// process.
//
// Metrics:
//   - linkrank_analyses_total{status} - Ranking cycles by outcome
//   - linkrank_batches_total{outcome} - Engine batches by outcome
//   - linkrank_batch_duration_seconds{protocol} - Batch wall time
//   - linkrank_stale_drops_total{checkpoint} - Work dropped as superseded
//   - linkrank_resolutions_total{protocol} - Confirmed rank signals
//   - linkrank_filter_rejected_total{rule} - Candidates removed by the filter
//   - linkrank_snapshots_total{kind} - Snapshots handed to the consumer
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			AnalysesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_analyses_total",
					Help: "Total number of ranking cycles",
				},
				[]string{"status"}, // "ok", "no_links", "error", "stale"
			),

			BatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_batches_total",
					Help: "Total number of engine batches",
				},
				[]string{"outcome"},
			),

			BatchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "linkrank_batch_duration_seconds",
					Help:    "Duration of one engine batch in seconds",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
				},
				[]string{"protocol"},
			),

			StaleDropsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_stale_drops_total",
					Help: "Total number of superseded requests dropped",
				},
				[]string{"checkpoint"},
			),

			ResolutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_resolutions_total",
					Help: "Total number of confirmed rank signals",
				},
				[]string{"protocol"},
			),

			FilterRejectsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_filter_rejected_total",
					Help: "Total number of candidates rejected by the filter",
				},
				[]string{"rule"},
			),

			SnapshotsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "linkrank_snapshots_total",
					Help: "Total number of snapshots delivered",
				},
				[]string{"kind"}, // "partial" or "final"
			),
		}
	})
	return globalMetrics
}
