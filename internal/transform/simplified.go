package transform

import "github.com/soniakeys/unit"

// Simplified rotates the in-plane part of an initial position by a
// cumulative angle and scales the original, unrotated z by cos(i).
//
// This is an approximation used by the velocity-based dashboards. It is not
// a frame rotation and does not agree with Ecliptic for inclined orbits.
func Simplified(initial Vector3, angle, incl unit.Angle) Vector3 {
	s, c := angle.Sincos()
	return Vector3{
		X: initial.X*c - initial.Y*s,
		Y: initial.X*s + initial.Y*c,
		Z: initial.Z * incl.Cos(),
	}
}
