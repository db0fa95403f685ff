package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.PiecesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pvcgraph_pieces_total",
			Help: "Number of pieces registered in the graph",
		},
	)

	r.IslandsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pvcgraph_islands_total",
			Help: "Number of islands (connected components)",
		},
	)

	r.AttachmentsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pvcgraph_attachments_total",
			Help: "Number of mated attachment point pairs",
		},
	)

	r.AttachmentChangesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvcgraph_attachment_changes_total",
			Help: "Attachments formed or broken",
		},
		[]string{"change"},
	)

	r.IslandOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvcgraph_island_operations_total",
			Help: "Island lifecycle operations",
		},
		[]string{"operation"},
	)

	r.RejectedCallsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pvcgraph_rejected_calls_total",
			Help: "Calls rejected because of a caller precondition",
		},
		[]string{"operation", "reason"},
	)
}

func (r *Registry) initTimingMetrics() {
	r.UpdateDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pvcgraph_update_attachments_duration_seconds",
			Help:    "UpdateAttachments duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
		},
		[]string{"changed"},
	)

	r.RegenDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pvcgraph_regen_island_duration_seconds",
			Help:    "RegenIsland flood fill duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
		},
	)

	r.SplitComponents = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pvcgraph_regen_island_components",
			Help:    "Components found by each RegenIsland call",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	r.CandidatesScanned = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pvcgraph_match_candidates_scanned",
			Help:    "Candidate points compared per UpdateAttachments call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
}
