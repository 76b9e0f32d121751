package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	batchesTotal       *prometheus.CounterVec
	logWriteErrors     prometheus.Counter
}

// New creates a registry with the HTTP and submission collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfc_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mfc_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfc_submissions_total",
		Help: "Availability updates by outcome status.",
	}, []string{"status"})
	submissionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mfc_submission_duration_seconds",
		Help:    "Round-trip time of vendor availability calls.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mfc_batches_total",
		Help: "Finished batches by final state.",
	}, []string{"state"})
	logWriteErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mfc_log_write_errors_total",
		Help: "Log entries that could not be persisted.",
	})
	registry.MustRegister(requests, duration, submissions, submissionDuration, batches, logWriteErrors)

	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		submissionsTotal:   submissions,
		submissionDuration: submissionDuration,
		batchesTotal:       batches,
		logWriteErrors:     logWriteErrors,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency for every HTTP request.
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

// ObserveSubmission records one item outcome. A zero elapsed means no
// network call was made.
func (m *Metrics) ObserveSubmission(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		m.submissionDuration.Observe(elapsed.Seconds())
	}
}

// ObserveBatch records a finished batch.
func (m *Metrics) ObserveBatch(state string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(state).Inc()
}

// LogWriteFailed counts a log entry the store rejected.
func (m *Metrics) LogWriteFailed() {
	if m == nil {
		return
	}
	m.logWriteErrors.Inc()
}

// Registerer exposes the registry for extra collectors.
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
