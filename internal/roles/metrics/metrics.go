package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics provides observability for the role lifecycle.
type Metrics struct {
	RolesCreated           *prometheus.CounterVec
	RolesVerified          prometheus.Counter
	RolesRemoved           *prometheus.CounterVec
	StoreRetries           prometheus.Counter
	ActivationInconsistent prometheus.Counter
	OperationDuration      *prometheus.HistogramVec
}

// New registers the role metrics on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RolesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_roles_created_total",
			Help: "Roles created by role type and verification mode",
		}, []string{"role_type", "verification"}),
		RolesVerified: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_roles_verified_total",
			Help: "Pending roles confirmed with a verification token",
		}),
		RolesRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_roles_removed_total",
			Help: "Roles removed by reason",
		}, []string{"reason"}),
		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_role_store_retries_total",
			Help: "Role store calls retried after a transient failure",
		}),
		ActivationInconsistent: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_role_activation_inconsistent_total",
			Help: "Activations that left the account without an active role",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rolesync_role_operation_duration_seconds",
			Help:    "Duration of role lifecycle operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated(roleType, verification string) {
	m.RolesCreated.WithLabelValues(roleType, verification).Inc()
}

func (m *Metrics) IncrementVerified() {
	m.RolesVerified.Inc()
}

func (m *Metrics) IncrementRemoved(reason string) {
	m.RolesRemoved.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddRemoved(reason string, n int) {
	m.RolesRemoved.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) IncrementStoreRetry() {
	m.StoreRetries.Inc()
}

func (m *Metrics) IncrementActivationInconsistent() {
	m.ActivationInconsistent.Inc()
}

// ObserveOperation records the duration of op.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
