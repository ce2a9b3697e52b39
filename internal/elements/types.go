package elements

import (
	"fmt"
	"time"
)

// Unit is the distance unit shared by every row of a table.
type Unit string

const (
	UnitAU  Unit = "AU"
	UnitKM  Unit = "km"
	UnitMKM Unit = "Mkm" // millions of km
)

// AUInKM is the astronomical unit in kilometres.
const AUInKM = 149597870.7

// DaysPerYear converts orbital periods given in Julian years.
const DaysPerYear = 365.25

// ParseUnit accepts the unit spellings seen in element tables.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "AU", "au":
		return UnitAU, nil
	case "km", "KM":
		return UnitKM, nil
	case "Mkm", "mkm", "1e6km", "10^6 km":
		return UnitMKM, nil
	}
	return "", fmt.Errorf("unknown distance unit %q", s)
}

// OrbitalElements holds the Keplerian elements of one body.
// Angles are stored in degrees; consumers convert with unit.AngleFromDeg.
type OrbitalElements struct {
	Name          string  `json:"name" yaml:"name"`
	SemiMajorAxis float64 `json:"a" yaml:"a"`
	Eccentricity  float64 `json:"e" yaml:"e"`
	Inclination   float64 `json:"i" yaml:"i"`
	AscendingNode float64 `json:"node" yaml:"node"`
	ArgPerihelion float64 `json:"peri" yaml:"peri"`
	PeriodDays    float64 `json:"period_days" yaml:"period_days"`
}

// Table is an ordered, read-only set of orbital elements.
// Body order is the load order and is preserved by every computation.
type Table struct {
	Unit   Unit              `json:"unit"`
	Epoch  time.Time         `json:"epoch"`
	Bodies []OrbitalElements `json:"bodies"`
}

// Lookup returns the elements of the named body.
func (t *Table) Lookup(name string) (OrbitalElements, bool) {
	for _, b := range t.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return OrbitalElements{}, false
}

// VelocityElements is one row of the velocity-based table: the body moves
// along its orbit perimeter at a constant speed.
type VelocityElements struct {
	Name           string  `json:"name"`
	PeriodDays     float64 `json:"period_days"`
	VelocityKmS    float64 `json:"velocity_km_s"`
	PerimeterMkm   float64 `json:"perimeter_mkm"`
	InclinationDeg float64 `json:"inclination_deg"`
}

// Coordinates is a Cartesian position in AU.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VelocityTable pairs velocity rows with the initial positions of each body
// at the table's reference epoch.
type VelocityTable struct {
	Epoch     time.Time              `json:"epoch"`
	Rows      []VelocityElements     `json:"rows"`
	Reference map[string]Coordinates `json:"reference"`
}

// Dataset is a complete, immutable snapshot of everything loaded at startup.
// Either table may be nil when its source was not configured.
type Dataset struct {
	Source    string         `json:"source"`
	LoadedAt  time.Time      `json:"loaded_at"`
	Keplerian *Table         `json:"keplerian,omitempty"`
	Velocity  *VelocityTable `json:"velocity,omitempty"`
}

// BodyCount returns the number of bodies in the Keplerian table, falling
// back to the velocity table.
func (d *Dataset) BodyCount() int {
	switch {
	case d.Keplerian != nil:
		return len(d.Keplerian.Bodies)
	case d.Velocity != nil:
		return len(d.Velocity.Rows)
	}
	return 0
}

// Default reference epochs of the two table kinds.
var (
	DefaultEpoch         = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultVelocityEpoch = time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
)
