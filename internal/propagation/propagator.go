package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
)

// DefaultMaxFrames bounds a timeline to roughly ten years of daily frames.
const DefaultMaxFrames = 3660

// Propagator serves position computations against the current dataset.
// It holds no mutable state of its own; every call reads one snapshot.
type Propagator struct {
	store   *elements.Store
	pool    *WorkerPool
	config  PropConfig
	compute Config
	logger  *slog.Logger
}

// NewPropagator creates a propagator with a fixed default computation.
func NewPropagator(store *elements.Store, config PropConfig, compute Config, logger *slog.Logger) *Propagator {
	if config.MaxFrames <= 0 {
		config.MaxFrames = DefaultMaxFrames
	}
	return &Propagator{
		store:   store,
		pool:    NewWorkerPool(config.Workers, logger),
		config:  config,
		compute: compute.withDefaults(),
		logger:  logger,
	}
}

// Config returns the default computation.
func (p *Propagator) Config() Config {
	return p.compute
}

// MaxFrames returns the timeline bound.
func (p *Propagator) MaxFrames() int {
	return p.config.MaxFrames
}

// Dataset returns the current snapshot.
func (p *Propagator) Dataset() (*elements.Dataset, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoTable
	}
	return ds, nil
}

// PropagateDate computes the default computation for a YYYY-MM-DD date.
func (p *Propagator) PropagateDate(ctx context.Context, date string) (*PositionSet, error) {
	return p.PropagateWith(ctx, p.compute, date)
}

// PropagateWith computes a YYYY-MM-DD date with an explicit configuration.
func (p *Propagator) PropagateWith(ctx context.Context, cfg Config, date string) (*PositionSet, error) {
	t, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return p.PropagateAt(ctx, cfg, t)
}

// PropagateAt computes the calendar day of t.
func (p *Propagator) PropagateAt(ctx context.Context, cfg Config, t time.Time) (*PositionSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := p.Dataset()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	set, err := ComputeAt(cfg, ds, t)
	duration := time.Since(start)
	metrics.RecordComputation(string(cfg.withDefaults().Solver), duration, err)

	if err != nil {
		return nil, err
	}
	p.logger.Debug("positions computed",
		"date", set.Date.Format(DateLayout),
		"solver", string(set.Solver),
		"transform", string(set.Transform),
		"bodies", len(set.Samples),
		"duration_us", duration.Microseconds(),
	)
	return set, nil
}

// TimelineDates lists the dates of a timeline: start, start+step, ... up to
// start+days inclusive.
func TimelineDates(start time.Time, days, step int) ([]time.Time, error) {
	if days < 0 || step < 1 {
		return nil, fmt.Errorf("%w: days=%d step=%d", ErrInvalidRange, days, step)
	}
	start = midnight(start)
	dates := make([]time.Time, 0, days/step+1)
	for d := 0; d <= days; d += step {
		dates = append(dates, start.AddDate(0, 0, d))
	}
	return dates, nil
}

// Timeline computes a run of dates on the worker pool. Frames are returned
// in date order; any failing frame fails the whole timeline.
func (p *Propagator) Timeline(ctx context.Context, cfg Config, start time.Time, days, step int) ([]*PositionSet, error) {
	dates, err := TimelineDates(start, days, step)
	if err != nil {
		return nil, err
	}
	if len(dates) > p.config.MaxFrames {
		return nil, fmt.Errorf("%w: %d frames requested, limit %d", ErrTooManyFrames, len(dates), p.config.MaxFrames)
	}
	ds, err := p.Dataset()
	if err != nil {
		return nil, err
	}

	begin := time.Now()
	sets, err := p.pool.ComputeBatch(ctx, cfg, ds, dates)
	duration := time.Since(begin)
	metrics.RecordTimeline(len(dates))
	if err != nil {
		return nil, err
	}

	p.logger.Debug("timeline computed",
		"start", dates[0].Format(DateLayout),
		"frames", len(sets),
		"workers", p.pool.Workers(),
		"duration_ms", duration.Milliseconds(),
	)
	return sets, nil
}

// Orbits draws orbit lines for the current dataset.
func (p *Propagator) Orbits(cfg Config, segments int) ([]Orbit, error) {
	ds, err := p.Dataset()
	if err != nil {
		return nil, err
	}
	return OrbitCurves(cfg, ds, segments)
}

// Accuracy reports the first-order error of every Keplerian body on date.
func (p *Propagator) Accuracy(date string) ([]AccuracyReport, error) {
	t, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	ds, err := p.Dataset()
	if err != nil {
		return nil, err
	}
	if ds.Keplerian == nil {
		return nil, ErrNoTable
	}
	epoch := resolveEpoch(p.compute, ds.Keplerian.Epoch)
	return Accuracy(ds.Keplerian, float64(ElapsedDays(epoch, t))), nil
}
