package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tangled.org/atscan.net/lightproof/proof"
)

// Metrics holds all Prometheus metrics for the proof service.
type Metrics struct {
	registry *prometheus.Registry

	// Proof metrics
	ProofsTotal              *prometheus.CounterVec
	ProofDuration            prometheus.Histogram
	StageDuration            *prometheus.HistogramVec
	IntegrityMismatchesTotal *prometheus.CounterVec
	BundleSizeBytes          prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal      *prometheus.CounterVec
	WebSocketClientsActive prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry, so several
// servers (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProofsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lightproof_proofs_total",
				Help: "Proof requests by outcome (ok or error kind)",
			},
			[]string{"outcome"},
		),

		ProofDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lightproof_proof_duration_seconds",
				Help:    "End-to-end proof latency",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lightproof_stage_duration_seconds",
				Help:    "Time spent in each pipeline stage",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"stage"},
		),

		IntegrityMismatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lightproof_integrity_mismatches_total",
				Help: "Source data that failed its own digest checks",
			},
			[]string{"stage"},
		),

		BundleSizeBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lightproof_bundle_size_bytes",
				Help:    "Size of served proof bundles",
				Buckets: prometheus.ExponentialBuckets(512, 2, 12),
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lightproof_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		WebSocketClientsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "lightproof_websocket_clients_active",
				Help: "Connected WebSocket clients",
			},
		),
	}
}

// RecordOutcome counts one finished proof.
func (m *Metrics) RecordOutcome(err *proof.Error) {
	if err == nil {
		m.ProofsTotal.WithLabelValues("ok").Inc()
		return
	}
	m.ProofsTotal.WithLabelValues(string(err.Kind)).Inc()
	if err.Kind == proof.KindIntegrityMismatch {
		m.IntegrityMismatchesTotal.WithLabelValues(err.Stage.String()).Inc()
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
