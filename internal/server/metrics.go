package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// recommendationsTotal counts POST /jobs/parse outcomes: "ok",
	// "exhausted", or an error code.
	recommendationsTotal *prometheus.CounterVec

	// feedbackTotal counts POST /interview/submit-answer outcomes: "ok",
	// "degraded" (fallback served), or an error code.
	feedbackTotal *prometheus.CounterVec

	// feedbackDurationSeconds records how long the scorer took.
	feedbackDurationSeconds *prometheus.HistogramVec

	// ingestTotal counts POST /questions outcomes.
	ingestTotal *prometheus.CounterVec

	// rateLimitedTotal counts requests rejected with 429, per handler.
	rateLimitedTotal *prometheus.CounterVec

	// authFailuresTotal counts requests rejected with 401, per reason.
	authFailuresTotal *prometheus.CounterVec

	// dependencyUp is 1 when the named dependency passed its last readiness
	// probe and 0 otherwise.
	dependencyUp *prometheus.GaugeVec

	// httpInFlight is the number of requests currently being served.
	httpInFlight prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		recommendationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Total number of recommendation requests, partitioned by outcome.",
		}, []string{"outcome"}),

		feedbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "feedback",
			Name:      "requests_total",
			Help:      "Total number of answer feedback requests, partitioned by outcome.",
		}, []string{"outcome"}),

		feedbackDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prepai",
			Subsystem: "feedback",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of feedback model calls.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		ingestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "ingest",
			Name:      "questions_total",
			Help:      "Total number of questions submitted for ingestion, partitioned by outcome.",
		}, []string{"outcome"}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-client rate limit.",
		}, []string{labelHandler}),

		authFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "http",
			Name:      "auth_failures_total",
			Help:      "Total number of requests rejected for a missing or invalid API key.",
		}, []string{"reason"}),

		dependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "prepai",
			Subsystem: "dependency",
			Name:      "up",
			Help:      "Whether a dependency passed its most recent readiness probe (1) or not (0).",
		}, []string{"dependency"}),

		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "prepai",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prepai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "prepai",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument records request count, latency and in-flight gauge for the
// named handler.
func (s *Server) instrument(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.httpInFlight.Inc()
		defer s.metrics.httpInFlight.Dec()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(time.Since(start).Seconds())
	})
}
