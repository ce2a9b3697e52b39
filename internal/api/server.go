// Package api serves planet positions over HTTP.
package api

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ShlokMathur/planet-s-trajectory/internal/auth"
	"github.com/ShlokMathur/planet-s-trajectory/internal/cache"
	"github.com/ShlokMathur/planet-s-trajectory/internal/config"
	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/health"
	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
	"github.com/ShlokMathur/planet-s-trajectory/internal/observability"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
	"github.com/ShlokMathur/planet-s-trajectory/internal/stream"
)

// Deps are the components the handlers read from. Frames, Refresher and
// Stream may be nil; their routes then answer 503 or are not registered.
type Deps struct {
	Store     *elements.Store
	Prop      *propagation.Propagator
	Frames    *cache.FrameCache
	Refresher *elements.Refresher
	Stream    *stream.Handler
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	h := &handlers{
		store:     deps.Store,
		prop:      deps.Prop,
		frames:    deps.Frames,
		refresher: deps.Refresher,
		logger:    logger.With("component", "api"),
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Store.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/elements", h.elements)
	mux.HandleFunc("POST /api/v1/elements/reload", h.reload)
	mux.HandleFunc("GET /api/v1/positions", h.positions)
	mux.HandleFunc("GET /api/v1/positions.csv", h.positionsCSV)
	mux.HandleFunc("GET /api/v1/bodies/{name}", h.body)
	mux.HandleFunc("GET /api/v1/orbits", h.orbits)
	mux.HandleFunc("GET /api/v1/timeline", h.timeline)
	mux.HandleFunc("GET /api/v1/alignments", h.alignments)
	mux.HandleFunc("GET /api/v1/accuracy", h.accuracy)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)

	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", deps.Stream.HandlePositions)
		mux.HandleFunc("GET /api/v1/ws/positions", deps.Stream.HandleWebSocket)
	}

	var limiter *httputil.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = httputil.NewIPRateLimiter(cfg.Limit(), cfg.RateLimit.Burst)
	}

	// Build middleware chain: metrics -> tracing -> logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = httputil.RateLimit(limiter, cfg.RateLimit.TrustProxy, rateLimitExempt)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = observability.Middleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// rateLimitExempt skips probes, metrics and the streams, which have their
// own connection limiter.
func rateLimitExempt(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics", "/api/v1/stream/positions", "/api/v1/ws/positions":
		return true
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("response writer does not support hijacking")
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

const requestIDHeader = "X-Request-ID"

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
