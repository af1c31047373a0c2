// Package metrics exposes Prometheus collectors for the watchlist picker.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listing page outcomes.
const (
	PageOK      = "ok"
	PageEmpty   = "empty"
	PageStatus  = "status"
	PageRetry   = "retry"
	PageFailure = "network_error"
)

var (
	listingPagesTotal          *prometheus.CounterVec
	listingEntriesTotal        *prometheus.CounterVec
	listingBytesTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	samplesTotal               *prometheus.CounterVec
	sampleAttempts             *prometheus.HistogramVec
	robotsFallbackTotal        *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every observer calls it.
func Init() {
	once.Do(func() {
		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "randmov_listing_pages_total",
				Help: "Total number of listing pages requested, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		listingEntriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "randmov_listing_entries_total",
				Help: "Total number of listing containers seen, labeled by whether they parsed.",
			},
			[]string{"result"},
		)

		listingBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "randmov_listing_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		samplesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "randmov_samples_total",
				Help: "Total number of bounded samples, labeled by backend and result.",
			},
			[]string{"backend", "result"},
		)

		sampleAttempts = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "randmov_sample_attempts",
				Help:    "Histogram of shots needed by the rejection loop before a value was accepted.",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 16},
			},
			[]string{"backend"},
		)

		robotsFallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "randmov_robots_fallback_total",
				Help: "Total number of robots.txt probes that timed out and fell back to allow-all.",
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveListingPage records one listing page request and the bytes it returned.
func ObserveListingPage(site, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	listingPagesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		listingBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveEntries records parsed and skipped listing containers.
func ObserveEntries(parsed, skipped int) {
	Init()
	if parsed > 0 {
		listingEntriesTotal.WithLabelValues("parsed").Add(float64(parsed))
	}
	if skipped > 0 {
		listingEntriesTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSample records the outcome of one bounded sample.
func ObserveSample(backend string, attempts int, err error) {
	Init()
	if err != nil {
		samplesTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	samplesTotal.WithLabelValues(backend, "accepted").Inc()
	sampleAttempts.WithLabelValues(backend).Observe(float64(attempts))
}

// ObserveRobotsFallback records a robots.txt probe that was replaced by an allow-all policy.
func ObserveRobotsFallback(site string) {
	Init()
	robotsFallbackTotal.WithLabelValues(SanitizeSite(site)).Inc()
}
