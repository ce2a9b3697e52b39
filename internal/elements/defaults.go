package elements

import "time"

// Default returns the built-in nine-body table (Mercury through Pluto) with
// the semi-major axis in AU and periods converted from Julian years.
func Default() *Table {
	type row struct {
		name                      string
		a, e, i, node, peri, year float64
	}
	rows := []row{
		{"Mercury", 0.387, 0.206, 7.0, 48.33, 29.12, 0.241},
		{"Venus", 0.723, 0.007, 3.39, 76.68, 54.88, 0.615},
		{"Earth", 1.000, 0.017, 0.00, 0.00, 102.94, 1.000},
		{"Mars", 1.524, 0.093, 1.85, 49.56, 286.50, 1.881},
		{"Jupiter", 5.203, 0.049, 1.31, 100.56, 273.87, 11.862},
		{"Saturn", 9.537, 0.056, 2.49, 113.72, 339.39, 29.457},
		{"Uranus", 19.191, 0.047, 0.77, 74.00, 96.99, 84.020},
		{"Neptune", 30.069, 0.009, 1.77, 131.79, 265.64, 164.8},
		{"Pluto", 39.482, 0.249, 17.16, 110.30, 113.77, 248.0},
	}

	t := &Table{Unit: UnitAU, Epoch: DefaultEpoch}
	for _, r := range rows {
		t.Bodies = append(t.Bodies, OrbitalElements{
			Name:          r.name,
			SemiMajorAxis: r.a,
			Eccentricity:  r.e,
			Inclination:   r.i,
			AscendingNode: r.node,
			ArgPerihelion: r.peri,
			PeriodDays:    r.year * DaysPerYear,
		})
	}
	return t
}

// DefaultDataset wraps the built-in table in a dataset snapshot.
func DefaultDataset() *Dataset {
	return &Dataset{
		Source:    "builtin",
		LoadedAt:  time.Now().UTC(),
		Keplerian: Default(),
	}
}
