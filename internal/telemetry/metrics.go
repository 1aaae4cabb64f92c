package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the relay.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal         *prometheus.CounterVec
	TokensTotal         *prometheus.CounterVec
	BackendSeconds      *prometheus.HistogramVec
	TranscriptionsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the relay metric set on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_events_total",
			Help: "Inbound events processed, by kind and outcome.",
		}, []string{"kind", "status"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_tokens_total",
			Help: "Backend-reported tokens, by model and direction.",
		}, []string{"model", "direction"}),
		BackendSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatrelay_backend_request_seconds",
			Help:    "Completion backend call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model"}),
		TranscriptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_transcriptions_total",
			Help: "Voice transcriptions attempted, by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.EventsTotal, m.TokensTotal, m.BackendSeconds, m.TranscriptionsTotal)
	return m
}

// Handler returns an HTTP handler serving the metric set in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
