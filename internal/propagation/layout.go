package propagation

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// LayoutAngle is the position angle of body i out of n in the circular layout.
func LayoutAngle(i, n int) unit.Angle {
	return unit.Angle(float64(i) * 2 * math.Pi / float64(n))
}

// CircularLayoutPositions places body i of n at angle i·2π/n on a circle of radius a.
// It ignores time. With FullEcliptic the point is tilted into the body's
// orbital plane; with Simplified it stays in the ecliptic (z = 0).
func CircularLayoutPositions(bodies []elements.OrbitalElements, mode TransformMode) []PositionSample {
	n := len(bodies)
	samples := make([]PositionSample, n)
	for i, el := range bodies {
		s, c := LayoutAngle(i, n).Sincos()
		x, y := el.SemiMajorAxis*c, el.SemiMajorAxis*s

		var v transform.Vector3
		if mode == Simplified {
			v = transform.Simplified(transform.Vector3{X: x, Y: y}, 0, unit.AngleFromDeg(el.Inclination))
		} else {
			v = orient(el, x, y, FullEcliptic)
		}
		samples[i] = PositionSample{Name: el.Name, X: v.X, Y: v.Y, Z: v.Z, Distance: el.SemiMajorAxis}
	}
	return samples
}
