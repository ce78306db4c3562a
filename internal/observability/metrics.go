package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the balance engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	buildDuration      *prometheus.HistogramVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
}

// NewMetrics initializes the registry and the engine metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "balanza_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "balanza_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	buildDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "balanza_report_build_duration_seconds",
		Help:    "Report computation duration per report type.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"report"})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "balanza_report_cache_hits_total",
		Help: "Result-cache hits per report type.",
	}, []string{"report"})
	cacheMisses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "balanza_report_cache_misses_total",
		Help: "Result-cache misses per report type.",
	}, []string{"report"})
	validationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "balanza_report_validation_failures_total",
		Help: "Balance-identity validation failures per report type.",
	}, []string{"report"})
	registry.MustRegister(requests, duration, buildDuration, cacheHits, cacheMisses, validationFailures)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		buildDuration:      buildDuration,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		validationFailures: validationFailures,
	}
}

// ObserveBuild records one report computation.
func (m *Metrics) ObserveBuild(report string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(report).Observe(elapsed.Seconds())
}

// CacheHit records a result-cache hit.
func (m *Metrics) CacheHit(report string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(report).Inc()
}

// CacheMiss records a result-cache miss.
func (m *Metrics) CacheMiss(report string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(report).Inc()
}

// ValidationFailure records a failed balance-identity check.
func (m *Metrics) ValidationFailure(report string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(report).Inc()
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry so callers can add their own collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
