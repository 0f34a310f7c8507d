package throttle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks store call admission.
type Metrics struct {
	InFlight      prometheus.Gauge
	QueueWait     prometheus.Histogram
	QueueTimeouts prometheus.Counter
}

// NewMetrics registers throttler metrics with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "rolesync_store_calls_in_flight",
			Help: "Store calls currently holding a throttler slot",
		}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolesync_store_queue_wait_seconds",
			Help:    "Time spent waiting for a throttler slot",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		QueueTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "rolesync_store_queue_timeouts_total",
			Help: "Store calls rejected because no slot became free in time",
		}),
	}
}

func (m *Metrics) SetInFlight(n int64) {
	m.InFlight.Set(float64(n))
}

// ObserveQueueWait records the wait since start.
func (m *Metrics) ObserveQueueWait(start time.Time) {
	m.QueueWait.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementQueueTimeout() {
	m.QueueTimeouts.Inc()
}
