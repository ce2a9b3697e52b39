package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
	"github.com/ShlokMathur/planet-s-trajectory/internal/observability"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

const reloadTimeout = 30 * time.Second

func (h *handlers) elements(w http.ResponseWriter, r *http.Request) {
	ds := h.store.Get()
	if ds == nil {
		httputil.WriteError(w, propagation.ErrNoTable)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ds)
}

type reloadResponse struct {
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Bodies   int       `json:"bodies"`
}

// reload fetches the remote Keplerian table. On any failure the current
// snapshot keeps serving.
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		httputil.WriteError(w, elements.ErrNoSource)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	ctx, span := observability.StartSpan(ctx, "elements.reload")
	ds, err := h.refresher.Refresh(ctx)
	observability.EndSpan(span, err)
	metrics.RecordReload(err)

	if err != nil {
		h.logger.Warn("element reload failed", "error", err)
		status, code := httputil.ErrorStatus(err)
		if status == http.StatusInternalServerError {
			// Anything unmapped came from the upstream fetch.
			status, code = http.StatusBadGateway, "fetch_failed"
		}
		httputil.WriteJSON(w, status, httputil.ErrorBody{Error: err.Error(), Code: code})
		return
	}

	metrics.SetDatasetBodies(ds.BodyCount())
	httputil.WriteJSON(w, http.StatusOK, reloadResponse{Source: ds.Source, LoadedAt: ds.LoadedAt, Bodies: ds.BodyCount()})
}
