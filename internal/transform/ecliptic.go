package transform

import "github.com/soniakeys/unit"

// Ecliptic rotates an orbital-plane point (xo, yo) into the heliocentric
// ecliptic frame using the argument of perihelion ω, the longitude of the
// ascending node Ω and the inclination i:
//
//	x = xo(cosω cosΩ − sinω sinΩ cosi) − yo(sinω cosΩ + cosω sinΩ cosi)
//	y = xo(cosω sinΩ + sinω cosΩ cosi) + yo(cosω cosΩ cosi − sinω sinΩ)
//	z = xo sinω sini + yo cosω sini
//
// The result keeps the unit of the inputs.
func Ecliptic(xo, yo float64, argPeri, node, incl unit.Angle) Vector3 {
	sw, cw := argPeri.Sincos()
	sn, cn := node.Sincos()
	si, ci := incl.Sincos()

	return Vector3{
		X: xo*(cw*cn-sw*sn*ci) - yo*(sw*cn+cw*sn*ci),
		Y: xo*(cw*sn+sw*cn*ci) + yo*(cw*cn*ci-sw*sn),
		Z: xo*sw*si + yo*cw*si,
	}
}
