// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --- METRIC DEFINITIONS ---

var (
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
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	seoDirectivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsearch_seo_directives_total",
			Help: "SEO directives produced, labeled by route type, status, and robots value.",
		},
		[]string{"route_type", "status", "robots"},
	)

	indexTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsearch_index_transitions_total",
			Help: "Hysteresis decision flips, labeled by the new decision.",
		},
		[]string{"to"},
	)

	snapshotRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsearch_snapshot_refresh_total",
			Help: "Cached snapshot refreshes, labeled by component and result.",
		},
		[]string{"component", "result"},
	)

	storeFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carsearch_store_fallbacks_total",
			Help: "Collaborator failures answered from last-known-good or fail-closed, labeled by component and mode.",
		},
		[]string{"component", "mode"},
	)

	searchResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carsearch_search_results",
			Help:    "Histogram of total matches per search.",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500, 1000},
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carsearch_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)
)

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, rec.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// --- HELPER FUNCTIONS ---

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDirective records one evaluated SEO directive.
func ObserveDirective(routeType, status, robots string) {
	seoDirectivesTotal.WithLabelValues(routeType, status, robots).Inc()
}

// ObserveIndexTransition records a hysteresis flip to the given decision.
func ObserveIndexTransition(to string) {
	indexTransitionsTotal.WithLabelValues(to).Inc()
}

// ObserveRefresh records a snapshot refresh attempt ("ok" or "error").
func ObserveRefresh(component, result string) {
	snapshotRefreshTotal.WithLabelValues(component, result).Inc()
}

// ObserveFallback records a degraded answer ("last_known_good" or "fail_closed").
func ObserveFallback(component, mode string) {
	storeFallbacksTotal.WithLabelValues(component, mode).Inc()
}

// ObserveSearch records the total match count of one search.
func ObserveSearch(total int) {
	searchResultSize.Observe(float64(total))
}

// ObserveRateLimited records a request rejected by the rate limiter.
func ObserveRateLimited() {
	rateLimitedTotal.Inc()
}
