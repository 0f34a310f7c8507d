package resolution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Resolutions     *prometheus.CounterVec
	Corrections     *prometheus.CounterVec
	Completions     *prometheus.CounterVec
	ZeroRolesAlerts prometheus.Counter
	Duration        prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_resolutions_total",
			Help: "Resolution passes by outcome (clean, repaired, emergency, alert)",
		}, []string{"outcome"}),
		Corrections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_resolution_corrections_total",
			Help: "Repairs attempted during resolution by action",
		}, []string{"action"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_role_completions_total",
			Help: "Background completions of expected roles by outcome",
		}, []string{"outcome"}),
		ZeroRolesAlerts: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_zero_roles_alerts_total",
			Help: "Accounts found without any role outside the recency window",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolesync_resolution_duration_seconds",
			Help:    "Duration of resolution passes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementCorrection(action Action) {
	m.Corrections.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) IncrementCompletion(outcome string) {
	m.Completions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementZeroRolesAlert() {
	m.ZeroRolesAlerts.Inc()
}

func (m *Metrics) ObserveResolution(start time.Time) {
	m.Duration.Observe(time.Since(start).Seconds())
}
