// Package metrics exposes Prometheus collectors for the discovery console.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	discoveryRunsTotal         *prometheus.CounterVec
	discoveredPagesTotal       prometheus.Counter
	crawlBatchesTotal          *prometheus.CounterVec
	crawlPagesTotal            *prometheus.CounterVec
	markdownBytesTotal         prometheus.Counter
	persistenceTotal           *prometheus.CounterVec
	backendRequestDuration     *prometheus.HistogramVec
	crawlsInFlight             prometheus.Gauge
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
		discoveryRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_discovery_runs_total",
				Help: "Discovery runs, labeled by result (success, empty, error, invalid).",
			},
			[]string{"result"},
		)

		discoveredPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_discovered_pages_total",
				Help: "Pages returned by successful discovery runs.",
			},
		)

		crawlBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_crawl_batches_total",
				Help: "Crawl batches, labeled by result (success, error, rejected).",
			},
			[]string{"result"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_crawl_items_total",
				Help: "Pages and links reconciled after a crawl, labeled by final status.",
			},
			[]string{"status"},
		)

		markdownBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_markdown_bytes_total",
				Help: "Markdown bytes returned by successful crawls.",
			},
		)

		persistenceTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_persistence_total",
				Help: "Document save attempts, labeled by result.",
			},
			[]string{"result"},
		)

		backendRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docs_backend_request_duration_seconds",
				Help:    "Backend call latency, labeled by operation and outcome.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"operation", "outcome"},
		)

		crawlsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docs_crawl_urls_in_flight",
				Help: "Selected URLs currently waiting on a crawl batch.",
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docs_backend_rate_limit_delay_seconds",
				Help:    "Time backend calls spent waiting on the rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDiscovery records a discovery run and the pages it returned.
func ObserveDiscovery(result string, pages int) {
	Init()
	discoveryRunsTotal.WithLabelValues(result).Inc()
	if pages > 0 {
		discoveredPagesTotal.Add(float64(pages))
	}
}

// ObserveCrawlBatch records one crawl batch and the items it reconciled.
func ObserveCrawlBatch(result, status string, items, markdownBytes int) {
	Init()
	crawlBatchesTotal.WithLabelValues(result).Inc()
	if items > 0 && status != "" {
		crawlPagesTotal.WithLabelValues(status).Add(float64(items))
	}
	if markdownBytes > 0 {
		markdownBytesTotal.Add(float64(markdownBytes))
	}
}

// ObservePersistence records a document save attempt.
func ObservePersistence(result string) {
	Init()
	persistenceTotal.WithLabelValues(result).Inc()
}

// ObserveBackendCall records the latency of one backend call.
func ObserveBackendCall(operation, outcome string, duration time.Duration) {
	Init()
	backendRequestDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// AddInFlight adjusts the in-flight URL gauge by delta.
func AddInFlight(delta int) {
	Init()
	crawlsInFlight.Add(float64(delta))
}

// ObserveRateLimitDelay records how long a backend call waited for a token.
func ObserveRateLimitDelay(operation string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
