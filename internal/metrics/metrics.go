// Package metrics exposes Prometheus collectors for the client and its ops server.
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

var (
	jobsTotal                  *prometheus.CounterVec
	jobPollsTotal              prometheus.Counter
	jobDurationSeconds         *prometheus.HistogramVec
	zoneOperationsTotal        *prometheus.CounterVec
	apiRequestDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brightdata_jobs_total",
				Help: "Total number of jobs run, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		jobPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "brightdata_job_polls_total",
				Help: "Total number of job status checks.",
			},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brightdata_job_duration_seconds",
				Help:    "Histogram of end-to-end job durations, labeled by kind.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		)

		zoneOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brightdata_zone_operations_total",
				Help: "Total number of zone operations, labeled by operation and outcome.",
			},
			[]string{"op", "outcome"},
		)

		apiRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brightdata_api_request_duration_seconds",
				Help:    "Histogram of remote API latencies, labeled by endpoint and status code.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"endpoint", "code"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "brightdata_rate_limit_delay_seconds",
				Help:    "Histogram of client-side rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveJob records a finished job.
func ObserveJob(kind, outcome string, duration time.Duration) {
	Init()
	jobsTotal.WithLabelValues(kind, outcome).Inc()
	jobDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObservePoll records one status check.
func ObservePoll() {
	Init()
	jobPollsTotal.Inc()
}

// ObserveZoneOperation records a zone list, create or delete.
func ObserveZoneOperation(op, outcome string) {
	Init()
	zoneOperationsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveAPIRequest records a remote API call. A code of 0 means transport failure.
func ObserveAPIRequest(endpoint string, code int, duration time.Duration) {
	Init()
	apiRequestDurationSeconds.WithLabelValues(endpoint, strconv.Itoa(code)).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest records a request served by the ops server.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
