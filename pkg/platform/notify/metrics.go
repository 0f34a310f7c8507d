package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Emitted       *prometheus.CounterVec
	DeliveryFails prometheus.Counter
	Dropped       prometheus.Counter
	CircuitOpen   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rolesync_notifications_emitted_total",
			Help: "Notifications accepted for delivery by type",
		}, []string{"type"}),
		DeliveryFails: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_notification_delivery_failures_total",
			Help: "Batches the sink failed to accept",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_notifications_dropped_total",
			Help: "Notifications dropped by buffer overflow or an open circuit",
		}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "rolesync_notification_circuit_open",
			Help: "1 while the sink circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncrementEmitted(t EventType) {
	m.Emitted.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) IncrementDeliveryFailure() {
	m.DeliveryFails.Inc()
}

func (m *Metrics) AddDropped(n int) {
	m.Dropped.Add(float64(n))
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
