package transform

import (
	"math"

	"github.com/soniakeys/unit"
)

// Observation is the apparent direction and distance of a target as seen
// from another body, both given in the heliocentric ecliptic frame.
type Observation struct {
	LongitudeDeg  float64 `json:"longitude_deg"`  // [0, 360)
	LatitudeDeg   float64 `json:"latitude_deg"`   // [-90, 90]
	Range         float64 `json:"range"`          // table unit
	ElongationDeg float64 `json:"elongation_deg"` // angle between the Sun and the target
}

// Longitude returns the ecliptic longitude of v in [0, 2π).
func Longitude(v Vector3) unit.Angle {
	return unit.Angle(math.Atan2(v.Y, v.X)).Mod1()
}

// Observe computes where target appears from observer. Both positions are
// heliocentric. A zero range yields a zero Observation.
func Observe(observer, target Vector3) Observation {
	rel := target.Sub(observer)
	rng := rel.Norm()
	if rng == 0 {
		return Observation{}
	}

	obs := Observation{
		LongitudeDeg: Longitude(rel).Deg(),
		LatitudeDeg:  unit.Angle(math.Asin(rel.Z / rng)).Deg(),
		Range:        rng,
	}

	// Sun direction from the observer is -observer.
	if sunDist := observer.Norm(); sunDist > 0 {
		cos := -(observer.X*rel.X + observer.Y*rel.Y + observer.Z*rel.Z) / (sunDist * rng)
		obs.ElongationDeg = unit.Angle(math.Acos(math.Max(-1, math.Min(1, cos)))).Deg()
	}
	return obs
}
