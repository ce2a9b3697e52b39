package elements

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Column names of the velocity and reference-coordinate sheets. The long
// spellings are the headers of the published planetary fact sheets.
var (
	velocityColumns = map[string][]string{
		"name":        {"planet", "name", "body"},
		"period_days": {"orbital period (days)", "period_days"},
		"velocity":    {"orbital velocity (km/s)", "velocity_km_s"},
		"perimeter":   {"perimeter (10^6)(km)", "perimeter (10^6 km)", "perimeter_mkm"},
		"inclination": {"orbital inclination (degrees)", "inclination_deg", "i"},
	}
	referenceColumns = map[string][]string{
		"name": {"planet", "name", "body"},
		"x":    {"x (au)", "x"},
		"y":    {"y (au)", "y"},
		"z":    {"z (au)", "z"},
	}
)

// ParseVelocityTable reads the velocity sheet and the reference coordinate
// sheet of the velocity-based variant. Bodies keep the velocity sheet order.
func ParseVelocityTable(velocity, reference io.Reader, logger *slog.Logger) (*VelocityTable, error) {
	rows, err := parseVelocityRows(velocity)
	if err != nil {
		return nil, fmt.Errorf("velocity table: %w", err)
	}
	ref, err := parseReference(reference)
	if err != nil {
		return nil, fmt.Errorf("reference coordinates: %w", err)
	}

	for _, row := range rows {
		if _, ok := ref[row.Name]; !ok {
			logger.Warn("no reference coordinates for body", "body", row.Name)
		}
	}
	logger.Debug("velocity table parsed", "bodies", len(rows), "reference", len(ref))

	return &VelocityTable{
		Epoch:     DefaultVelocityEpoch,
		Rows:      rows,
		Reference: ref,
	}, nil
}

func parseVelocityRows(r io.Reader) ([]VelocityElements, error) {
	var rows []VelocityElements
	seen := make(map[string]bool)

	err := eachRecord(r, velocityColumns, func(cols columns, rec []string, line int) error {
		name, ok := cols.value(rec, "name")
		if !ok {
			return missing(line, "", "name")
		}
		row := VelocityElements{Name: name}

		var err error
		if row.PeriodDays, err = cols.float(rec, "period_days", line, name); err != nil {
			return err
		}
		if row.VelocityKmS, err = cols.float(rec, "velocity", line, name); err != nil {
			return err
		}
		if row.PerimeterMkm, err = cols.float(rec, "perimeter", line, name); err != nil {
			return err
		}
		if row.InclinationDeg, err = cols.float(rec, "inclination", line, name); err != nil {
			return err
		}

		switch {
		case row.PeriodDays <= 0:
			return malformed(line, name, "period_days", "orbital period must be > 0, got %v", row.PeriodDays)
		case row.PerimeterMkm <= 0:
			return malformed(line, name, "perimeter", "perimeter must be > 0, got %v", row.PerimeterMkm)
		case row.VelocityKmS < 0:
			return malformed(line, name, "velocity", "velocity must be >= 0, got %v", row.VelocityKmS)
		case seen[name]:
			return malformed(line, name, "name", "duplicate body")
		}
		seen[name] = true
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no bodies")
	}
	return rows, nil
}

func parseReference(r io.Reader) (map[string]Coordinates, error) {
	ref := make(map[string]Coordinates)

	err := eachRecord(r, referenceColumns, func(cols columns, rec []string, line int) error {
		name, ok := cols.value(rec, "name")
		if !ok {
			return missing(line, "", "name")
		}
		if _, dup := ref[name]; dup {
			return malformed(line, name, "name", "duplicate body")
		}

		var c Coordinates
		var err error
		if c.X, err = cols.float(rec, "x", line, name); err != nil {
			return err
		}
		if c.Y, err = cols.float(rec, "y", line, name); err != nil {
			return err
		}
		if c.Z, err = cols.float(rec, "z", line, name); err != nil {
			return err
		}
		ref[name] = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// eachRecord calls fn for every non-blank data row and stops at the first error.
func eachRecord(r io.Reader, aliases map[string][]string, fn func(columns, []string, int) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty input")
		}
		return fmt.Errorf("reading header: %w", err)
	}
	cols := indexHeader(header, aliases)
	if _, ok := cols["name"]; !ok {
		return missing(1, "", "name")
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading records: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		if err := fn(cols, rec, line); err != nil {
			return err
		}
	}
}
