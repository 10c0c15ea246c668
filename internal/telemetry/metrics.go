package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	APIErrors       *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// NewMetrics creates the service metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shippo_requests_total",
				Help: "Total number of Shippo API requests by operation, method, and status",
			},
			[]string{"operation", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shippo_request_duration_seconds",
				Help:    "Shippo API request duration in seconds by operation and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "method"},
		),
		APIErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shippo_errors_total",
				Help: "Total Shippo client errors by operation and error type",
			},
			[]string{"operation", "error_type"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shippo_bridge_http_requests_total",
				Help: "Total HTTP bridge requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, method, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, method, status).Inc()
	m.RequestDuration.WithLabelValues(operation, method).Observe(duration)
}

// RecordError records a client error metric.
func (m *Metrics) RecordError(operation, errorType string) {
	m.APIErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordHTTP records one request served by the HTTP bridge.
func (m *Metrics) RecordHTTP(route, code string) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
