package propagation

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// OrbitalPoint is a body's position in its own orbital plane, with the
// perihelion on the +x axis.
type OrbitalPoint struct {
	X           float64
	Y           float64
	Distance    float64
	MeanAnomaly unit.Angle
	TrueAnomaly unit.Angle
}

// MeanMotion returns the mean angular rate in radians per day.
func MeanMotion(periodDays float64) unit.Angle {
	return unit.Angle(2 * math.Pi / periodDays)
}

// TrueAnomaly approximates ν from the mean anomaly with the first-order
// equation of centre ν ≈ M + 2e·sin M. The error grows with e² and reaches
// several degrees for Mercury and Pluto.
func TrueAnomaly(meanAnomaly unit.Angle, e float64) unit.Angle {
	return meanAnomaly + unit.Angle(2*e*meanAnomaly.Sin())
}

// Radius returns the conic radius a(1−e²)/(1+e·cos ν).
func Radius(a, e float64, nu unit.Angle) float64 {
	return a * (1 - e*e) / (1 + e*nu.Cos())
}

// Solve advances one body by elapsedDays from the epoch. The mean anomaly is
// not wrapped; negative elapsed days run the orbit backwards.
func Solve(el elements.OrbitalElements, elapsedDays float64) OrbitalPoint {
	M := MeanMotion(el.PeriodDays) * unit.Angle(elapsedDays)
	nu := TrueAnomaly(M, el.Eccentricity)
	r := Radius(el.SemiMajorAxis, el.Eccentricity, nu)
	s, c := nu.Sincos()

	return OrbitalPoint{
		X:           r * c,
		Y:           r * s,
		Distance:    r,
		MeanAnomaly: M,
		TrueAnomaly: nu,
	}
}

// orient carries an orbital-plane point into the ecliptic frame with the
// selected transform. Simplified rotates by the longitude of perihelion
// Ω+ω and keeps z at zero, since the in-plane point has none.
func orient(el elements.OrbitalElements, x, y float64, mode TransformMode) transform.Vector3 {
	peri := unit.AngleFromDeg(el.ArgPerihelion)
	node := unit.AngleFromDeg(el.AscendingNode)
	incl := unit.AngleFromDeg(el.Inclination)

	if mode == Simplified {
		return transform.Simplified(transform.Vector3{X: x, Y: y}, node+peri, incl)
	}
	return transform.Ecliptic(x, y, peri, node, incl)
}

// Position is Solve followed by the selected frame transform.
func Position(el elements.OrbitalElements, elapsedDays float64, mode TransformMode) (transform.Vector3, float64) {
	p := Solve(el, elapsedDays)
	return orient(el, p.X, p.Y, mode), p.Distance
}
