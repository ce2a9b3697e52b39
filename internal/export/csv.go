// Package export writes position sets as CSV for spreadsheets and plotting.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func unitLabel(set *propagation.PositionSet) string {
	if set.Unit == "" {
		return "AU"
	}
	return string(set.Unit)
}

// WritePositions writes one row per body:
//
//	Planet,X (AU),Y (AU),Z (AU),Distance (AU)
func WritePositions(w io.Writer, set *propagation.PositionSet) error {
	cw := csv.NewWriter(w)
	u := unitLabel(set)
	if err := cw.Write([]string{"Planet", "X (" + u + ")", "Y (" + u + ")", "Z (" + u + ")", "Distance (" + u + ")"}); err != nil {
		return err
	}
	for _, s := range set.Samples {
		if err := cw.Write([]string{s.Name, formatFloat(s.X), formatFloat(s.Y), formatFloat(s.Z), formatFloat(s.Distance)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTimeline writes a timeline in long form, one row per body per date.
func WriteTimeline(w io.Writer, sets []*propagation.PositionSet) error {
	cw := csv.NewWriter(w)
	u := "AU"
	if len(sets) > 0 {
		u = unitLabel(sets[0])
	}
	if err := cw.Write([]string{"Date", "Elapsed Days", "Planet", "X (" + u + ")", "Y (" + u + ")", "Z (" + u + ")", "Distance (" + u + ")"}); err != nil {
		return err
	}
	for _, set := range sets {
		date := set.Date.Format(propagation.DateLayout)
		elapsed := strconv.Itoa(set.ElapsedDays)
		for _, s := range set.Samples {
			row := []string{date, elapsed, s.Name, formatFloat(s.X), formatFloat(s.Y), formatFloat(s.Z), formatFloat(s.Distance)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOrbits writes orbit polylines, one row per point.
func WriteOrbits(w io.Writer, orbits []propagation.Orbit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Planet", "Point", "X", "Y", "Z"}); err != nil {
		return err
	}
	for _, o := range orbits {
		for i, p := range o.Points {
			if err := cw.Write([]string{o.Name, strconv.Itoa(i), formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)}); err != nil {
				return fmt.Errorf("orbit %s: %w", o.Name, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
