package elements

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Column aliases for the Keplerian CSV format. Keys are canonical names.
var keplerianColumns = map[string][]string{
	"name":         {"name", "planet", "body"},
	"a":            {"a", "semi_major_axis", "semimajoraxis"},
	"e":            {"e", "eccentricity"},
	"i":            {"i", "inclination"},
	"node":         {"node", "Ω", "ascending_node", "longitude_ascending_node"},
	"peri":         {"peri", "ω", "arg_perihelion", "argument_of_perihelion"},
	"period_days":  {"period_days", "p_days"},
	"period_years": {"period_years", "p"},
}

// ParseCSV reads a Keplerian element table with a header row.
// The whole load fails on the first bad row; nothing is defaulted to zero.
func ParseCSV(r io.Reader, unit Unit, logger *slog.Logger) (*Table, error) {
	table := &Table{Unit: unit, Epoch: DefaultEpoch}
	seen := make(map[string]bool)

	err := eachRecord(r, keplerianColumns, func(cols columns, rec []string, line int) error {
		el, err := keplerianRow(cols, rec, line)
		if err != nil {
			return err
		}
		if seen[el.Name] {
			return malformed(line, el.Name, "name", "duplicate body")
		}
		seen[el.Name] = true
		table.Bodies = append(table.Bodies, el)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("element table: %w", err)
	}

	if len(table.Bodies) == 0 {
		return nil, fmt.Errorf("element table has no bodies")
	}
	logger.Debug("element table parsed", "bodies", len(table.Bodies), "unit", string(unit), "format", "csv")
	return table, nil
}

func keplerianRow(cols columns, rec []string, line int) (OrbitalElements, error) {
	name, ok := cols.value(rec, "name")
	if !ok {
		return OrbitalElements{}, missing(line, "", "name")
	}
	el := OrbitalElements{Name: name}

	var err error
	fields := []struct {
		key string
		dst *float64
	}{
		{"a", &el.SemiMajorAxis},
		{"e", &el.Eccentricity},
		{"i", &el.Inclination},
		{"node", &el.AscendingNode},
		{"peri", &el.ArgPerihelion},
	}
	for _, f := range fields {
		if *f.dst, err = cols.float(rec, f.key, line, name); err != nil {
			return OrbitalElements{}, err
		}
	}

	switch {
	case cols.has(rec, "period_days"):
		el.PeriodDays, err = cols.float(rec, "period_days", line, name)
	case cols.has(rec, "period_years"):
		var years float64
		years, err = cols.float(rec, "period_years", line, name)
		el.PeriodDays = years * DaysPerYear
	default:
		err = missing(line, name, "period_days")
	}
	if err != nil {
		return OrbitalElements{}, err
	}

	if err := Validate(el, line); err != nil {
		return OrbitalElements{}, err
	}
	return el, nil
}

// Validate enforces the load-time contract of a single body.
func Validate(el OrbitalElements, line int) error {
	for field, v := range map[string]float64{
		"a":           el.SemiMajorAxis,
		"e":           el.Eccentricity,
		"i":           el.Inclination,
		"node":        el.AscendingNode,
		"peri":        el.ArgPerihelion,
		"period_days": el.PeriodDays,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed(line, el.Name, field, "not a finite number")
		}
	}

	switch {
	case strings.TrimSpace(el.Name) == "":
		return missing(line, "", "name")
	case el.SemiMajorAxis <= 0:
		return malformed(line, el.Name, "a", "semi-major axis must be > 0, got %v", el.SemiMajorAxis)
	case el.Eccentricity < 0 || el.Eccentricity >= 1:
		return malformed(line, el.Name, "e", "eccentricity must be in [0, 1), got %v", el.Eccentricity)
	case el.PeriodDays <= 0:
		return malformed(line, el.Name, "period_days", "orbital period must be > 0, got %v", el.PeriodDays)
	}
	return nil
}

// columns maps canonical column names to record indexes.
type columns map[string]int

func indexHeader(header []string, aliases map[string][]string) columns {
	lookup := make(map[string]string)
	for canonical, names := range aliases {
		for _, n := range names {
			lookup[n] = canonical
		}
	}

	cols := make(columns)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		// Ω lower-cases to ω, so exact matches win.
		canonical, ok := lookup[h]
		if !ok {
			canonical, ok = lookup[strings.ToLower(h)]
		}
		if ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func (c columns) value(rec []string, key string) (string, bool) {
	idx, ok := c[key]
	if !ok || idx >= len(rec) {
		return "", false
	}
	v := strings.TrimSpace(rec[idx])
	return v, v != ""
}

func (c columns) has(rec []string, key string) bool {
	_, ok := c.value(rec, key)
	return ok
}

func (c columns) float(rec []string, key string, line int, body string) (float64, error) {
	raw, ok := c.value(rec, key)
	if !ok {
		return 0, missing(line, body, key)
	}
	return parseNumber(raw, line, body, key)
}

func parseNumber(raw string, line int, body, field string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, malformed(line, body, field, "not a number: %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, malformed(line, body, field, "not a finite number: %q", raw)
	}
	return v, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
