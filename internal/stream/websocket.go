package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

const maxRequestBytes = 4096

// wsRequest asks for one date. Empty mode fields keep the server default.
type wsRequest struct {
	Date      string  `json:"date"`
	Solver    string  `json:"solver,omitempty"`
	Transform string  `json:"transform,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
}

// HandleWebSocket answers date requests over a WebSocket until the client
// goes away. GET /api/v1/ws/positions
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	release, ok := h.limiter.acquire(ip, transportWS)
	if !ok {
		h.logger.Warn("stream limit exceeded", "transport", transportWS, "remote_ip", ip)
		w.Header().Set("Retry-After", "30")
		httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorBody{Error: "too many concurrent streams", Code: "rate_limited"})
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	connected := time.Now()
	h.logger.Info("stream connected", "transport", transportWS, "remote_ip", ip)
	defer func() {
		h.logger.Info("stream disconnected",
			"transport", transportWS,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(connected).Seconds()),
		)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that stops answering pings is dropped.
	readWait := 2 * h.config.KeepaliveInterval
	conn.SetReadLimit(maxRequestBytes)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	go h.ping(ctx, conn)

	if err := h.writeWS(conn, h.metadata(time.Time{}, 0)); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error", "remote_ip", ip, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		var reply any
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			reply = errorMessage{Type: "error", Error: "malformed request", Code: "bad_request"}
		} else if set, err := h.answer(ctx, req); err != nil {
			_, code := httputil.ErrorStatus(err)
			reply = errorMessage{Type: "error", Error: err.Error(), Code: code}
		} else {
			reply = buildPositionsMessage(set)
		}
		if err := h.writeWS(conn, reply); err != nil {
			h.logger.Debug("websocket write error", "remote_ip", ip, "error", err)
			return
		}
	}
}

// answer computes one request, reading the frame cache when the request
// uses the default computation.
func (h *Handler) answer(ctx context.Context, req wsRequest) (*propagation.PositionSet, error) {
	date, err := propagation.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	def := h.prop.Config()
	cfg, err := def.Override(req.Solver, req.Transform, req.Scale)
	if err != nil {
		return nil, err
	}
	if cfg == def && h.frames != nil {
		return h.frames.Frame(ctx, date)
	}
	return h.prop.PropagateAt(ctx, cfg, date)
}

func (h *Handler) writeWS(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		return err
	}
	metrics.RecordStreamMessage(transportWS)
	return nil
}

func (h *Handler) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(h.config.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// checkOrigin allows same-host requests and the configured origins. With no
// origins configured every origin is accepted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
