package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the arbitration endpoints.
type Metrics struct {
	AuthRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the arbiter metrics collectors on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on a caller-supplied registerer. Tests
// use it to avoid the default registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authgateway_auth_requests_total",
			Help: "Number of authorization requests served by effective result",
		}, []string{"result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgateway_request_duration_seconds",
			Help:    "Duration (in seconds) of an endpoint call",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"endpoint"}),
	}
}

// CountRequest increments the request counter for the effective outcome.
func (m *Metrics) CountRequest(allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.AuthRequests.WithLabelValues(result).Inc()
}

// ObserveDuration records the latency of one endpoint call.
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
