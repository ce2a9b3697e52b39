package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// ComputePositions computes every body's position on targetDate (YYYY-MM-DD).
// It is pure: the dataset is only read, and a failure on any body discards
// the whole batch.
func ComputePositions(cfg Config, ds *elements.Dataset, targetDate string) (*PositionSet, error) {
	date, err := ParseDate(targetDate)
	if err != nil {
		return nil, err
	}
	return ComputeAt(cfg, ds, date)
}

// ComputeAt is ComputePositions for an already parsed date. Only the
// calendar day of date is used.
func ComputeAt(cfg Config, ds *elements.Dataset, date time.Time) (*PositionSet, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, ErrNoTable
	}
	date = midnight(date)

	set := &PositionSet{
		Date:      date,
		JulianDay: transform.JulianDate(date),
		Solver:    cfg.Solver,
		Transform: cfg.Transform,
		Scale:     cfg.Scale,
	}

	var samples []PositionSample
	var err error
	switch cfg.Solver {
	case EpochBased, CircularLayout:
		table := ds.Keplerian
		if table == nil || len(table.Bodies) == 0 {
			return nil, fmt.Errorf("%w: keplerian table required by %s solver", ErrNoTable, cfg.Solver)
		}
		set.Epoch = resolveEpoch(cfg, table.Epoch)
		set.Unit = table.Unit
		set.ElapsedDays = ElapsedDays(set.Epoch, date)

		if cfg.Solver == CircularLayout {
			samples = CircularLayoutPositions(table.Bodies, cfg.Transform)
		} else {
			samples = epochSamples(table.Bodies, float64(set.ElapsedDays), cfg.Transform)
		}

	case VelocityBased:
		vt := ds.Velocity
		if vt == nil || len(vt.Rows) == 0 {
			return nil, fmt.Errorf("%w: velocity table required by %s solver", ErrNoTable, cfg.Solver)
		}
		set.Epoch = resolveEpoch(cfg, vt.Epoch)
		set.Unit = elements.UnitAU
		set.ElapsedDays = ElapsedDays(set.Epoch, date)

		samples, err = velocitySamples(vt, float64(set.ElapsedDays))
		if err != nil {
			return nil, err
		}
	}

	for i := range samples {
		s := &samples[i]
		s.X *= cfg.Scale
		s.Y *= cfg.Scale
		s.Z *= cfg.Scale
		s.Distance *= cfg.Scale
		if !(transform.Vector3{X: s.X, Y: s.Y, Z: s.Z}).Finite() || math.IsNaN(s.Distance) || math.IsInf(s.Distance, 0) {
			return nil, &BodyError{Body: s.Name, Err: ErrNonFinitePosition}
		}
	}
	set.Samples = samples
	return set, nil
}

func resolveEpoch(cfg Config, tableEpoch time.Time) time.Time {
	if !cfg.Epoch.IsZero() {
		return midnight(cfg.Epoch)
	}
	return tableEpoch
}

func epochSamples(bodies []elements.OrbitalElements, elapsed float64, mode TransformMode) []PositionSample {
	samples := make([]PositionSample, len(bodies))
	for i, el := range bodies {
		v, r := Position(el, elapsed, mode)
		samples[i] = PositionSample{Name: el.Name, X: v.X, Y: v.Y, Z: v.Z, Distance: r}
	}
	return samples
}

func velocitySamples(vt *elements.VelocityTable, elapsed float64) ([]PositionSample, error) {
	samples := make([]PositionSample, len(vt.Rows))
	for i, row := range vt.Rows {
		ref, ok := vt.Reference[row.Name]
		if !ok {
			return nil, &BodyError{Body: row.Name, Err: ErrMissingReference}
		}
		v := VelocityPosition(row, ref, elapsed)
		samples[i] = PositionSample{Name: row.Name, X: v.X, Y: v.Y, Z: v.Z, Distance: v.Norm()}
	}
	return samples, nil
}
