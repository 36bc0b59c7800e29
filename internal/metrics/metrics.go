package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes exporter metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry                *prometheus.Registry
	httpRequests            *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	upstreamRequests        *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	exportRunsTotal         *prometheus.CounterVec
	exportRunDuration       prometheus.Histogram
}

// New creates a fresh Metrics registry with panel, upstream and export metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobexport",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the local panel",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobexport",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the local panel",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	upstreamRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobexport",
		Name:      "upstream_requests_total",
		Help:      "Count of requests issued to the Prusa Connect API",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobexport",
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests issued to the Prusa Connect API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	exportRunsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobexport",
		Name:      "export_runs_total",
		Help:      "Total number of export runs by outcome",
	}, []string{"outcome"})

	exportRunDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobexport",
		Name:      "export_run_duration_seconds",
		Help:      "Duration of export runs from click to download",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		upstreamRequests,
		upstreamRequestDuration,
		exportRunsTotal,
		exportRunDuration,
	)

	return &Metrics{
		registry:                registry,
		httpRequests:            httpRequests,
		httpRequestDuration:     httpRequestDuration,
		upstreamRequests:        upstreamRequests,
		upstreamRequestDuration: upstreamRequestDuration,
		exportRunsTotal:         exportRunsTotal,
		exportRunDuration:       exportRunDuration,
	}
}

// ObserveHTTPRequest records a single request/response cycle on the local panel.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveUpstreamRequest records one call to the vendor API. A status of 0
// means the request failed before a response arrived.
func (m *Metrics) ObserveUpstreamRequest(endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstreamRequests.With(prometheus.Labels{"endpoint": endpoint, "status": code}).Inc()
	m.upstreamRequestDuration.With(prometheus.Labels{"endpoint": endpoint}).Observe(duration.Seconds())
}

// IncExportRun increments the export run counter for the given outcome.
func (m *Metrics) IncExportRun(outcome string) {
	if m == nil {
		return
	}
	m.exportRunsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// ObserveExportRunDuration observes an export run duration.
func (m *Metrics) ObserveExportRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.exportRunDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
