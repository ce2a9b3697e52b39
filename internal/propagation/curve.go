package propagation

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// DefaultCurvePoints is the number of segments in an orbit line.
const DefaultCurvePoints = 100

// MaxCurvePoints bounds a single orbit line.
const MaxCurvePoints = 10000

// Orbit is a closed polyline of one body's path, for drawing.
type Orbit struct {
	Name   string              `json:"name"`
	Points []transform.Vector3 `json:"points"`
}

// OrbitCurve samples the conic of el at segments+1 evenly spaced true
// anomalies over [0, 2π]; the last point closes the curve.
func OrbitCurve(el elements.OrbitalElements, mode TransformMode, segments int) []transform.Vector3 {
	if segments <= 0 {
		segments = DefaultCurvePoints
	}
	pts := make([]transform.Vector3, segments+1)
	for k := 0; k <= segments; k++ {
		nu := unit.Angle(2 * math.Pi * float64(k) / float64(segments))
		r := Radius(el.SemiMajorAxis, el.Eccentricity, nu)
		s, c := nu.Sincos()
		pts[k] = orient(el, r*c, r*s, mode)
	}
	return pts
}

// referenceCurve sweeps reference coordinates through a full turn with the
// simplified transform.
func referenceCurve(row elements.VelocityElements, ref elements.Coordinates, segments int) []transform.Vector3 {
	initial := transform.Vector3{X: ref.X, Y: ref.Y, Z: ref.Z}
	incl := unit.AngleFromDeg(row.InclinationDeg)
	pts := make([]transform.Vector3, segments+1)
	for k := 0; k <= segments; k++ {
		theta := unit.Angle(2 * math.Pi * float64(k) / float64(segments))
		pts[k] = transform.Simplified(initial, theta, incl)
	}
	return pts
}

// OrbitCurves draws every body's orbit for the given computation mode, in
// table order and scaled like the positions.
func OrbitCurves(cfg Config, ds *elements.Dataset, segments int) ([]Orbit, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, ErrNoTable
	}
	if segments <= 0 {
		segments = DefaultCurvePoints
	}
	if segments > MaxCurvePoints {
		return nil, fmt.Errorf("%w: at most %d points per orbit", ErrUnsupportedMode, MaxCurvePoints)
	}

	var orbits []Orbit
	switch cfg.Solver {
	case EpochBased, CircularLayout:
		if ds.Keplerian == nil {
			return nil, ErrNoTable
		}
		for _, el := range ds.Keplerian.Bodies {
			if cfg.Solver == CircularLayout {
				el.Eccentricity = 0
			}
			orbits = append(orbits, Orbit{Name: el.Name, Points: OrbitCurve(el, cfg.Transform, segments)})
		}
	case VelocityBased:
		if ds.Velocity == nil {
			return nil, ErrNoTable
		}
		for _, row := range ds.Velocity.Rows {
			ref, ok := ds.Velocity.Reference[row.Name]
			if !ok {
				return nil, &BodyError{Body: row.Name, Err: ErrMissingReference}
			}
			orbits = append(orbits, Orbit{Name: row.Name, Points: referenceCurve(row, ref, segments)})
		}
	}

	for _, o := range orbits {
		for i, p := range o.Points {
			o.Points[i] = p.Scale(cfg.Scale)
		}
	}
	return orbits, nil
}
