package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics records calls made to the estimation service and upload lifecycle transitions
type ClientMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploadBytes     prometheus.Counter
	transitions     *prometheus.CounterVec
}

func NewClientMetrics() *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Calls to the estimation service by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Estimation service call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)
	uploadBytes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "upload_bytes_total",
			Help:      "Document bytes sent to the estimation service.",
		},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "transitions_total",
			Help:      "Upload lifecycle state entries.",
		},
		[]string{"state"},
	)

	registry.MustRegister(requestsTotal, requestDuration, uploadBytes, transitions)

	return &ClientMetrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		uploadBytes:     uploadBytes,
		transitions:     transitions,
	}
}

// Handler exposes the registry in Prometheus text format
func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one completed call; outcome is "ok" or an error kind
func (m *ClientMetrics) ObserveRequest(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddUploadBytes counts bytes streamed in an upload body
func (m *ClientMetrics) AddUploadBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

// ObserveTransition counts entry into an upload lifecycle state
func (m *ClientMetrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}
