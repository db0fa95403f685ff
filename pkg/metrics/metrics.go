package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attachment change labels
const (
	ChangeFormed = "formed"
	ChangeBroken = "broken"
)

// Island operation labels
const (
	OpCreate  = "create"
	OpDestroy = "destroy"
	OpMerge   = "merge"
	OpSplit   = "split"
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initGraphMetrics()
	r.initTimingMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// SetGraphSize records the current piece, island and attachment-pair counts
func (r *Registry) SetGraphSize(pieces, islands, attachmentPairs int) {
	r.PiecesTotal.Set(float64(pieces))
	r.IslandsTotal.Set(float64(islands))
	r.AttachmentsTotal.Set(float64(attachmentPairs))
}

// RecordAttachmentChange counts a formed or broken attachment
func (r *Registry) RecordAttachmentChange(change string) {
	r.AttachmentChangesTotal.WithLabelValues(change).Inc()
}

// RecordIslandOperation counts an island lifecycle operation
func (r *Registry) RecordIslandOperation(op string) {
	r.IslandOperationsTotal.WithLabelValues(op).Inc()
}

// RecordRejected counts a call rejected for a caller precondition
func (r *Registry) RecordRejected(operation, reason string) {
	r.RejectedCallsTotal.WithLabelValues(operation, reason).Inc()
}

// RecordUpdate records one UpdateAttachments call
func (r *Registry) RecordUpdate(changed bool, candidates int, duration time.Duration) {
	r.UpdateDuration.WithLabelValues(strconv.FormatBool(changed)).Observe(duration.Seconds())
	r.CandidatesScanned.Observe(float64(candidates))
}

// RecordRegen records one RegenIsland flood fill
func (r *Registry) RecordRegen(components int, duration time.Duration) {
	r.RegenDuration.Observe(duration.Seconds())
	r.SplitComponents.Observe(float64(components))
}
