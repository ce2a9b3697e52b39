package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ShlokMathur/planet-s-trajectory/internal/cache"
	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/events"
	"github.com/ShlokMathur/planet-s-trajectory/internal/export"
	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
	"github.com/ShlokMathur/planet-s-trajectory/internal/observability"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// maxAlignmentEvents bounds the events returned per pair.
const maxAlignmentEvents = 1000

type handlers struct {
	store     *elements.Store
	prop      *propagation.Propagator
	frames    *cache.FrameCache
	refresher *elements.Refresher
	logger    *slog.Logger
}

// positionSet computes one date, going through the frame cache when cfg is
// the default computation.
func (h *handlers) positionSet(ctx context.Context, cfg propagation.Config, date string) (*propagation.PositionSet, error) {
	ctx, span := observability.StartSpan(ctx, "propagation.positions",
		attribute.String("date", date),
		attribute.String("solver", string(cfg.Solver)),
		attribute.String("transform", string(cfg.Transform)),
	)
	t, err := propagation.ParseDate(date)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	var set *propagation.PositionSet
	if h.frames != nil && cfg == h.prop.Config() {
		set, err = h.frames.Frame(ctx, t)
	} else {
		set, err = h.prop.PropagateAt(ctx, cfg, t)
	}
	observability.EndSpan(span, err)
	return set, err
}

func (h *handlers) positions(w http.ResponseWriter, r *http.Request) {
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	set, err := h.positionSet(r.Context(), cfg, dateParam(r, "date"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}

func (h *handlers) positionsCSV(w http.ResponseWriter, r *http.Request) {
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	date := dateParam(r, "date")
	set, err := h.positionSet(r.Context(), cfg, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeCSVHeaders(w, "positions-"+date+".csv")
	if err := export.WritePositions(w, set); err != nil {
		h.logger.Warn("csv write failed", "error", err)
	}
}

func writeCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}

type bodyResponse struct {
	Name     string                     `json:"name"`
	Date     time.Time                  `json:"date"`
	Unit     elements.Unit              `json:"unit"`
	Position propagation.PositionSample `json:"position"`
	Elements *elements.OrbitalElements  `json:"elements,omitempty"`
	// FromEarth is where the body appears from Earth, when Earth is in the
	// table and the body is not Earth.
	FromEarth *transform.Observation `json:"from_earth,omitempty"`
}

func (h *handlers) body(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	set, err := h.positionSet(r.Context(), cfg, dateParam(r, "date"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sample, ok := set.Lookup(name)
	if !ok {
		httputil.WriteError(w, fmt.Errorf("%w: %q", propagation.ErrUnknownBody, name))
		return
	}

	resp := bodyResponse{Name: sample.Name, Date: set.Date, Unit: set.Unit, Position: sample}
	if ds := h.store.Get(); ds != nil && ds.Keplerian != nil {
		if el, ok := ds.Keplerian.Lookup(name); ok {
			resp.Elements = &el
		}
	}
	if earth, ok := set.Lookup("Earth"); ok && name != "Earth" {
		obs := transform.Observe(
			transform.Vector3{X: earth.X, Y: earth.Y, Z: earth.Z},
			transform.Vector3{X: sample.X, Y: sample.Y, Z: sample.Z},
		)
		resp.FromEarth = &obs
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type orbitsResponse struct {
	Solver    propagation.SolverMode    `json:"solver"`
	Transform propagation.TransformMode `json:"transform"`
	Orbits    []propagation.Orbit       `json:"orbits"`
}

func (h *handlers) orbits(w http.ResponseWriter, r *http.Request) {
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	segments, err := intParam(r, "segments", propagation.DefaultCurvePoints, 1, propagation.MaxCurvePoints)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	_, span := observability.StartSpan(r.Context(), "propagation.orbits", attribute.Int("segments", segments))
	orbits, err := h.prop.Orbits(cfg, segments)
	observability.EndSpan(span, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSVHeaders(w, "orbits.csv")
		if err := export.WriteOrbits(w, orbits); err != nil {
			h.logger.Warn("csv write failed", "error", err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, orbitsResponse{Solver: cfg.Solver, Transform: cfg.Transform, Orbits: orbits})
}

type timelineResponse struct {
	Start  string                     `json:"start"`
	Days   int                        `json:"days"`
	Step   int                        `json:"step"`
	Frames []*propagation.PositionSet `json:"frames"`
}

func (h *handlers) timeline(w http.ResponseWriter, r *http.Request) {
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	startStr := dateParam(r, "start")
	start, err := propagation.ParseDate(startStr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	days, err := intParam(r, "days", 30, 0, 100*366)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	step, err := intParam(r, "step", 1, 1, 100*366)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ctx, span := observability.StartSpan(r.Context(), "propagation.timeline",
		attribute.String("start", startStr),
		attribute.Int("days", days),
		attribute.Int("step", step),
	)
	sets, err := h.prop.Timeline(ctx, cfg, start, days, step)
	observability.EndSpan(span, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSVHeaders(w, "timeline-"+startStr+".csv")
		if err := export.WriteTimeline(w, sets); err != nil {
			h.logger.Warn("csv write failed", "error", err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, timelineResponse{Start: startStr, Days: days, Step: step, Frames: sets})
}

type alignmentsResponse struct {
	Start string              `json:"start"`
	Days  int                 `json:"days"`
	Pairs []events.PairEvents `json:"pairs"`
}

func (h *handlers) alignments(w http.ResponseWriter, r *http.Request) {
	cfg, err := computation(r, h.prop.Config())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pairs, err := pairsParam(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	startStr := dateParam(r, "start")
	start, err := propagation.ParseDate(startStr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	days, err := intParam(r, "days", 365, 1, events.MaxSearchDays)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	maxEvents, err := intParam(r, "max", 100, 1, maxAlignmentEvents)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ds, err := h.prop.Dataset()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx, span := observability.StartSpan(r.Context(), "events.find",
		attribute.Int("pairs", len(pairs)),
		attribute.Int("days", days),
	)
	found, err := events.Find(ctx, ds, events.Request{
		Config:    cfg,
		Pairs:     pairs,
		Start:     start,
		Days:      days,
		MaxEvents: maxEvents,
	})
	observability.EndSpan(span, err)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alignmentsResponse{Start: startStr, Days: days, Pairs: found})
}

type accuracyResponse struct {
	Date   string                        `json:"date"`
	Bodies []propagation.AccuracyReport `json:"bodies"`
}

func (h *handlers) accuracy(w http.ResponseWriter, r *http.Request) {
	date := dateParam(r, "date")
	reports, err := h.prop.Accuracy(date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accuracyResponse{Date: date, Bodies: reports})
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorBody{Error: "frame cache disabled", Code: "no_cache"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.frames.Stats())
}
