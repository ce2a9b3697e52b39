// Package stream plays back daily planet positions to browsers.
//
// GET /api/v1/stream/positions serves Server-Sent Events: a metadata message,
// then one positions message per day of the requested range, then an end
// message:
//
//	data: {"type":"metadata","source":"builtin","solver":"epoch",...}\n\n
//	data: {"type":"positions","date":"2024-03-10","bodies":[...]}\n\n
//	data: {"type":"end","frames":30}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval between frames.
//
// GET /api/v1/ws/positions upgrades to a WebSocket on which the client sends
// {"date":"YYYY-MM-DD"} and receives the position set or an error message.
package stream

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShlokMathur/planet-s-trajectory/internal/cache"
	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

const (
	transportSSE = "sse"
	transportWS  = "ws"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Global stream cap (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive interval (default: 30s).
	FrameInterval      time.Duration // Wall time between played-back days (default: 1s).
	MaxDays            int           // Longest playback (default: propagation.DefaultMaxFrames).
	TrustProxy         bool
	AllowedOrigins     []string // WebSocket origins; empty allows any.
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 10
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = time.Second
	}
	if c.MaxDays <= 0 {
		c.MaxDays = propagation.DefaultMaxFrames
	}
	return c
}

// Handler manages streaming connections.
type Handler struct {
	frames   *cache.FrameCache
	prop     *propagation.Propagator
	store    *elements.Store
	config   Config
	limiter  *streamLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(frames *cache.FrameCache, prop *propagation.Propagator, store *elements.Store, config Config, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	h := &Handler{
		frames:  frames,
		prop:    prop,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// HandlePositions serves the SSE playback.
// GET /api/v1/stream/positions?start=2024-03-10&days=30&interval_ms=1000
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := cache.Day(time.Now())
	if v := q.Get("start"); v != "" {
		t, err := propagation.ParseDate(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		start = t
	}

	days := 30
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > h.config.MaxDays {
			httputil.BadRequest(w, fmt.Sprintf("invalid days parameter, must be 1-%d", h.config.MaxDays))
			return
		}
		days = n
	}

	interval := h.config.FrameInterval
	if v := q.Get("interval_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 10 || n > 60000 {
			httputil.BadRequest(w, "invalid interval_ms parameter, must be 10-60000")
			return
		}
		interval = time.Duration(n) * time.Millisecond
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip, transportSSE)
	if !ok {
		h.logger.Warn("stream limit exceeded",
			"transport", transportSSE,
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorBody{Error: "too many concurrent streams", Code: "rate_limited"})
		return
	}

	connected := time.Now()
	h.logger.Info("stream connected",
		"transport", transportSSE,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"start", start.Format(propagation.DateLayout),
		"days", days,
	)

	defer func() {
		release()
		h.logger.Info("stream disconnected",
			"transport", transportSSE,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(connected).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorBody{Error: "streaming not supported", Code: "internal"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &sseClient{w: w, flusher: flusher, rc: rc, logger: h.logger}

	// Jittered retry (3-7s) spreads reconnects after a restart.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.metadata(start, days)); err != nil {
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	sent := 0
	next := func() bool {
		set, err := h.frames.Frame(ctx, start.AddDate(0, 0, sent))
		if err != nil {
			status, code := httputil.ErrorStatus(err)
			h.logger.Warn("stream frame failed", "remote_ip", ip, "status", status, "error", err)
			c.sendJSON(errorMessage{Type: "error", Error: err.Error(), Code: code})
			return false
		}
		if err := c.sendJSON(buildPositionsMessage(set)); err != nil {
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return false
		}
		sent++
		keepalive.Reset(h.config.KeepaliveInterval)
		return true
	}

	if !next() {
		return
	}
	for sent < days {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !next() {
				return
			}
		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
	c.sendJSON(endMessage{Type: "end", Frames: sent})
}

func (h *Handler) metadata(start time.Time, days int) metadataMessage {
	cfg := h.prop.Config()
	meta := metadataMessage{
		Type:      "metadata",
		Solver:    string(cfg.Solver),
		Transform: string(cfg.Transform),
		Scale:     cfg.Scale,
		Days:      days,
	}
	if !start.IsZero() {
		meta.Start = start.Format(propagation.DateLayout)
	}
	if ds := h.store.Get(); ds != nil {
		meta.Source = ds.Source
		meta.LoadedAt = ds.LoadedAt.UTC().Format(time.RFC3339)
		meta.AgeSeconds = int(time.Since(ds.LoadedAt).Seconds())
	}
	return meta
}

// buildPositionsMessage formats a position set into the stream payload.
func buildPositionsMessage(set *propagation.PositionSet) positionsMessage {
	bodies := make([]bodyPayload, len(set.Samples))
	for i, s := range set.Samples {
		bodies[i] = bodyPayload{Name: s.Name, P: [3]float64{s.X, s.Y, s.Z}, D: s.Distance}
	}
	return positionsMessage{
		Type:        "positions",
		Date:        set.Date.Format(propagation.DateLayout),
		ElapsedDays: set.ElapsedDays,
		JulianDay:   set.JulianDay,
		Unit:        string(set.Unit),
		Bodies:      bodies,
	}
}

// Stream payload types.

type metadataMessage struct {
	Type       string  `json:"type"`
	Source     string  `json:"source,omitempty"`
	LoadedAt   string  `json:"loaded_at,omitempty"`
	AgeSeconds int     `json:"age_seconds"`
	Solver     string  `json:"solver"`
	Transform  string  `json:"transform"`
	Scale      float64 `json:"scale"`
	Start      string  `json:"start,omitempty"`
	Days       int     `json:"days,omitempty"`
}

type positionsMessage struct {
	Type        string        `json:"type"`
	Date        string        `json:"date"`
	ElapsedDays int           `json:"elapsed_days"`
	JulianDay   float64       `json:"jd"`
	Unit        string        `json:"unit"`
	Bodies      []bodyPayload `json:"bodies"`
}

type bodyPayload struct {
	Name string     `json:"name"`
	P    [3]float64 `json:"p"`
	D    float64    `json:"d"`
}

type endMessage struct {
	Type   string `json:"type"`
	Frames int    `json:"frames"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}
