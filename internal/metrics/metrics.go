package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orrery_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	computationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_computations_total",
			Help: "Position batches computed, by solver and outcome.",
		},
		[]string{"solver", "outcome"},
	)

	computationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orrery_computation_duration_seconds",
			Help:    "Duration of a single position batch.",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"solver"},
	)

	timelineFrames = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orrery_timeline_frames",
			Help:    "Frames per timeline request.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orrery_workers",
			Help: "Size of the timeline worker pool.",
		},
	)

	datasetBodies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orrery_elements_bodies",
			Help: "Bodies in the current element table.",
		},
	)

	datasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orrery_elements_age_seconds",
			Help: "Age of the current element table.",
		},
	)

	reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_elements_reloads_total",
			Help: "Element table reloads, by outcome.",
		},
		[]string{"outcome"},
	)

	cacheFrames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orrery_cache_frames",
			Help: "Frames held by the timeline cache.",
		},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_cache_lookups_total",
			Help: "Timeline cache lookups, by result.",
		},
		[]string{"result"},
	)

	streamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orrery_stream_clients",
			Help: "Connected streaming clients, by transport.",
		},
		[]string{"transport"},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orrery_stream_messages_total",
			Help: "Messages sent to streaming clients, by transport.",
		},
		[]string{"transport"},
	)

	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orrery_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		computationsTotal,
		computationDurationSeconds,
		timelineFrames,
		workersActive,
		datasetBodies,
		datasetAgeSeconds,
		reloadsTotal,
		cacheFrames,
		cacheLookupsTotal,
		streamClients,
		streamMessagesTotal,
		rateLimitedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordComputation counts one batch and observes its duration.
func RecordComputation(solver string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	computationsTotal.WithLabelValues(solver, outcome).Inc()
	computationDurationSeconds.WithLabelValues(solver).Observe(d.Seconds())
}

// RecordTimeline observes the length of a timeline request.
func RecordTimeline(frames int) {
	timelineFrames.Observe(float64(frames))
}

// SetWorkers records the worker pool size.
func SetWorkers(n int) {
	workersActive.Set(float64(n))
}

// SetDatasetBodies records the body count of the current table.
func SetDatasetBodies(n int) {
	datasetBodies.Set(float64(n))
}

// SetDatasetAge records the age of the current table.
func SetDatasetAge(seconds float64) {
	datasetAgeSeconds.Set(seconds)
}

// RecordReload counts a table reload attempt.
func RecordReload(err error) {
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	reloadsTotal.WithLabelValues("ok").Inc()
}

// SetCacheFrames records the timeline cache size.
func SetCacheFrames(n int) {
	cacheFrames.Set(float64(n))
}

// RecordCacheLookup counts a timeline cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// StreamConnected adjusts the client gauge of a transport ("sse", "ws").
func StreamConnected(transport string, delta int) {
	streamClients.WithLabelValues(transport).Add(float64(delta))
}

// RecordStreamMessage counts one message sent to a streaming client.
func RecordStreamMessage(transport string) {
	streamMessagesTotal.WithLabelValues(transport).Inc()
}

// RecordRateLimited counts a rejected request.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// knownRoutes are label-safe paths. Anything else collapses to "other" so
// scanners cannot blow up label cardinality.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/elements":         true,
	"/api/v1/elements/reload":  true,
	"/api/v1/positions":        true,
	"/api/v1/positions.csv":    true,
	"/api/v1/orbits":           true,
	"/api/v1/timeline":         true,
	"/api/v1/alignments":       true,
	"/api/v1/accuracy":         true,
	"/api/v1/cache/stats":      true,
	"/api/v1/stream/positions": true,
	"/api/v1/ws/positions":     true,
}

// bodyPrefix is the one parameterized route.
const bodyPrefix = "/api/v1/bodies/"

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if len(path) > len(bodyPrefix) && path[:len(bodyPrefix)] == bodyPrefix {
		return bodyPrefix + "{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
