// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the application metrics.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Resolve pipeline metrics
	ResolveTotal    *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec

	// Fulfillment metrics
	DownloadTotal *prometheus.CounterVec
	BytesStreamed prometheus.Counter

	// Billing metrics
	CreditsConsumedTotal prometheus.Counter
	InsufficientTotal    prometheus.Counter

	// Capability token metrics
	TokenVerifyTotal *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates (or returns the already-registered) metrics set.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolve_total",
			Help: "Total number of post URL resolutions",
		}, []string{"platform", "outcome"}),

		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resolve_duration_seconds",
			Help:    "Post URL resolution duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),

		DownloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "downloads_total",
			Help: "Total number of fulfillment attempts",
		}, []string{"platform", "status"}),

		BytesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "download_bytes_streamed_total",
			Help: "Total bytes streamed to clients",
		}),

		CreditsConsumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Total credits debited for downloads",
		}),

		InsufficientTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_insufficient_total",
			Help: "Total downloads rejected for insufficient credits",
		}),

		TokenVerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_verifications_total",
			Help: "Total capability token verifications",
		}, []string{"outcome"}),
	}

	registerMetrics(m)
	globalMetrics = m
	return m
}

func registerMetrics(m *Metrics) {
	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.ResolveTotal)
	registerOrGet(m.ResolveDuration)
	registerOrGet(m.DownloadTotal)
	registerOrGet(m.BytesStreamed)
	registerOrGet(m.CreditsConsumedTotal)
	registerOrGet(m.InsufficientTotal)
	registerOrGet(m.TokenVerifyTotal)
}

// registerOrGet tries to register a metric, returning the existing one if
// already registered.
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and durations. The chi route pattern
// is used as the path label so IDs don't blow up cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.HTTPRequestTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
