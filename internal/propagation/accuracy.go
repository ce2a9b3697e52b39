package propagation

import (
	"math"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
)

// AccuracyReport compares the first-order true anomaly with the converged
// solution of Kepler's equation for one body.
type AccuracyReport struct {
	Name           string  `json:"name"`
	Eccentricity   float64 `json:"e"`
	MeanAnomalyDeg float64 `json:"mean_anomaly_deg"`
	ApproxTrueDeg  float64 `json:"approx_true_anomaly_deg"`
	KeplerTrueDeg  float64 `json:"kepler_true_anomaly_deg"`
	ErrorDeg       float64 `json:"error_deg"`
	// DistanceError is the radius difference in the table unit.
	DistanceError float64 `json:"distance_error"`
}

// ApproximationError reports how far Solve's anomaly is from the Kepler
// solution at elapsedDays. Diagnostic only; Solve never iterates.
func ApproximationError(el elements.OrbitalElements, elapsedDays float64) AccuracyReport {
	p := Solve(el, elapsedDays)
	M := p.MeanAnomaly.Mod1()

	E := kepler.Kepler3(el.Eccentricity, M)
	exact := kepler.True(E, el.Eccentricity).Mod1()
	approx := p.TrueAnomaly.Mod1()

	return AccuracyReport{
		Name:           el.Name,
		Eccentricity:   el.Eccentricity,
		MeanAnomalyDeg: M.Deg(),
		ApproxTrueDeg:  approx.Deg(),
		KeplerTrueDeg:  exact.Deg(),
		ErrorDeg:       wrapPi(approx - exact).Deg(),
		DistanceError:  p.Distance - Radius(el.SemiMajorAxis, el.Eccentricity, exact),
	}
}

// Accuracy runs ApproximationError over a whole table, in order.
func Accuracy(table *elements.Table, elapsedDays float64) []AccuracyReport {
	reports := make([]AccuracyReport, len(table.Bodies))
	for i, el := range table.Bodies {
		reports[i] = ApproximationError(el, elapsedDays)
	}
	return reports
}

// wrapPi folds an angle difference into (−π, π].
func wrapPi(a unit.Angle) unit.Angle {
	r := math.Mod(a.Rad(), 2*math.Pi)
	switch {
	case r > math.Pi:
		r -= 2 * math.Pi
	case r <= -math.Pi:
		r += 2 * math.Pi
	}
	return unit.Angle(r)
}
