package bootstrap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outcomes          *prometheus.CounterVec
	Rollbacks         *prometheus.CounterVec
	AuxiliaryFailures prometheus.Counter
	Duration          prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_bootstrap_total",
			Help: "Bootstrap runs by outcome (success, partial, failure)",
		}, []string{"outcome"}),
		Rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_bootstrap_rollbacks_total",
			Help: "Compensating rollbacks by completion",
		}, []string{"complete"}),
		AuxiliaryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_bootstrap_auxiliary_failures_total",
			Help: "Default provisioning failures swallowed after bootstrap",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolesync_bootstrap_duration_seconds",
			Help:    "Duration of bootstrap runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	m.Outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRollback(complete bool) {
	label := "false"
	if complete {
		label = "true"
	}
	m.Rollbacks.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementAuxiliaryFailure() {
	m.AuxiliaryFailures.Inc()
}

func (m *Metrics) ObserveBootstrap(start time.Time) {
	m.Duration.Observe(time.Since(start).Seconds())
}
