package propagation

import (
	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

const secondsPerDay = 86400

// AngleMoved returns the angle swept along an orbit of the given perimeter
// (10^6 km) at a constant speed (km/s) over elapsedDays:
//
//	deg = v·86400·days / (perimeter·1e6) · 360
//
// The angle accumulates without wraparound.
func AngleMoved(velocityKmS, perimeterMkm, elapsedDays float64) unit.Angle {
	travelled := velocityKmS * secondsPerDay * elapsedDays
	return unit.AngleFromDeg(travelled / (perimeterMkm * 1e6) * 360)
}

// VelocityPosition advances a body's reference coordinates by the angle it
// swept since the reference epoch, using the simplified transform.
func VelocityPosition(row elements.VelocityElements, ref elements.Coordinates, elapsedDays float64) transform.Vector3 {
	initial := transform.Vector3{X: ref.X, Y: ref.Y, Z: ref.Z}
	angle := AngleMoved(row.VelocityKmS, row.PerimeterMkm, elapsedDays)
	return transform.Simplified(initial, angle, unit.AngleFromDeg(row.InclinationDeg))
}
