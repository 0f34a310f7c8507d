package propertysync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Operations       *prometheus.CounterVec
	PropertiesSynced prometheus.Counter
	StageErrors      *prometheus.CounterVec
	Unsynced         prometheus.Counter
	Duration         prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_sync_operations_total",
			Help: "Property sync operations by outcome (complete, partial, empty)",
		}, []string{"outcome"}),
		PropertiesSynced: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_sync_properties_total",
			Help: "Properties associated with a target role",
		}),
		StageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_sync_stage_errors_total",
			Help: "Per-property sync errors by stage",
		}, []string{"stage"}),
		Unsynced: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_sync_unsynced_total",
			Help: "Property associations removed",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolesync_sync_duration_seconds",
			Help:    "Duration of property sync operations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveSync records the outcome of one sync operation. Enrichment stage
// errors are counted as they happen; the rest are counted here.
func (m *Metrics) ObserveSync(result *SyncResult, start time.Time) {
	outcome := "complete"
	switch {
	case result.SyncedCount == 0:
		outcome = "empty"
	case len(result.Errors) > 0 || result.SyncedCount < result.RequestedCount:
		outcome = "partial"
	}
	m.Operations.WithLabelValues(outcome).Inc()
	m.PropertiesSynced.Add(float64(result.SyncedCount))
	for _, e := range result.Errors {
		switch e.Stage {
		case StageInput, StageAccess, StageWrite, StageMirror:
			m.StageErrors.WithLabelValues(string(e.Stage)).Inc()
		}
	}
	m.Duration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStageError(stage Stage) {
	m.StageErrors.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) IncrementUnsynced() {
	m.Unsynced.Inc()
}
