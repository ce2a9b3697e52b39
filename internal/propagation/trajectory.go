package propagation

import (
	"fmt"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// Path gives one body's unscaled position at fractional days since Epoch.
type Path struct {
	Name  string
	Epoch time.Time
	At    func(days float64) transform.Vector3
}

// Trajectory builds the continuous path of a named body for cfg. The
// circular layout does not move and has no trajectory.
func Trajectory(cfg Config, ds *elements.Dataset, name string) (*Path, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, ErrNoTable
	}

	switch cfg.Solver {
	case EpochBased:
		if ds.Keplerian == nil {
			return nil, ErrNoTable
		}
		el, ok := ds.Keplerian.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBody, name)
		}
		mode := cfg.Transform
		return &Path{
			Name:  el.Name,
			Epoch: resolveEpoch(cfg, ds.Keplerian.Epoch),
			At: func(days float64) transform.Vector3 {
				v, _ := Position(el, days, mode)
				return v
			},
		}, nil

	case VelocityBased:
		vt := ds.Velocity
		if vt == nil {
			return nil, ErrNoTable
		}
		for _, row := range vt.Rows {
			if row.Name != name {
				continue
			}
			ref, ok := vt.Reference[row.Name]
			if !ok {
				return nil, &BodyError{Body: row.Name, Err: ErrMissingReference}
			}
			return &Path{
				Name:  row.Name,
				Epoch: resolveEpoch(cfg, vt.Epoch),
				At: func(days float64) transform.Vector3 {
					return VelocityPosition(row, ref, days)
				},
			}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownBody, name)
	}
	return nil, fmt.Errorf("%w: the %s solver has no trajectory", ErrUnsupportedMode, cfg.Solver)
}
