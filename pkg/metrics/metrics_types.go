package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Graph size
	PiecesTotal      prometheus.Gauge
	IslandsTotal     prometheus.Gauge
	AttachmentsTotal prometheus.Gauge

	// Graph changes
	AttachmentChangesTotal *prometheus.CounterVec
	IslandOperationsTotal  *prometheus.CounterVec
	RejectedCallsTotal     *prometheus.CounterVec

	// Timing
	UpdateDuration    *prometheus.HistogramVec
	RegenDuration     prometheus.Histogram
	SplitComponents   prometheus.Histogram
	CandidatesScanned prometheus.Histogram

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)
