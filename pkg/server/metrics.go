package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process counters exposed at /debug/metrics.
//
// Metrics satisfies monitor.Observer so ingest outcomes are counted
// without the monitor importing prometheus.
type Metrics struct {
	registry *prometheus.Registry

	extracted *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	requests  *prometheus.CounterVec
}

// NewMetrics creates counters on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		extracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_metrics_segments_extracted_total",
			Help: "Segments extracted into records, by mode",
		}, []string{"mode"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_metrics_segments_skipped_total",
			Help: "Segments that produced no record, by reason",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_metrics_http_requests_total",
			Help: "HTTP requests served, by route and status code",
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		m.extracted,
		m.skipped,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// SegmentExtracted counts a stored record.
func (m *Metrics) SegmentExtracted(mode string) {
	m.extracted.WithLabelValues(mode).Inc()
}

// SegmentSkipped counts a segment that produced no record.
func (m *Metrics) SegmentSkipped(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
