package transform

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the Julian Date of 2000-01-01 12:00.
const J2000 = 2451545.0

// JulianDate returns the Julian Date of t's UTC instant.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}
