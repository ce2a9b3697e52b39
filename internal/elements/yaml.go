package elements

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlTable struct {
	Unit   string      `yaml:"unit"`
	Epoch  string      `yaml:"epoch"`
	Bodies []yaml.Node `yaml:"bodies"`
}

// Pointers distinguish an absent key from an explicit zero.
type yamlBody struct {
	Name        *string  `yaml:"name"`
	A           *float64 `yaml:"a"`
	E           *float64 `yaml:"e"`
	I           *float64 `yaml:"i"`
	Node        *float64 `yaml:"node"`
	Peri        *float64 `yaml:"peri"`
	PeriodDays  *float64 `yaml:"period_days"`
	PeriodYears *float64 `yaml:"period_years"`
}

// ParseYAML reads a Keplerian element table in YAML form:
//
//	unit: AU
//	epoch: 2022-01-01
//	bodies:
//	  - {name: Earth, a: 1.0, e: 0.017, i: 0, node: 0, peri: 102.94, period_years: 1}
//
// A unit or epoch in the document overrides the fallback values.
func ParseYAML(r io.Reader, unit Unit, logger *slog.Logger) (*Table, error) {
	var doc yamlTable
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("reading element table: empty input")
		}
		return nil, fmt.Errorf("decoding element table: %w", err)
	}

	table := &Table{Unit: unit, Epoch: DefaultEpoch}
	if doc.Unit != "" {
		u, err := ParseUnit(doc.Unit)
		if err != nil {
			return nil, err
		}
		table.Unit = u
	}
	if doc.Epoch != "" {
		epoch, err := time.Parse(time.DateOnly, doc.Epoch)
		if err != nil {
			return nil, fmt.Errorf("invalid table epoch %q: %w", doc.Epoch, err)
		}
		table.Epoch = epoch
	}

	seen := make(map[string]bool)
	for _, node := range doc.Bodies {
		el, err := yamlRow(&node)
		if err != nil {
			return nil, err
		}
		if seen[el.Name] {
			return nil, malformed(node.Line, el.Name, "name", "duplicate body")
		}
		seen[el.Name] = true
		table.Bodies = append(table.Bodies, el)
	}

	if len(table.Bodies) == 0 {
		return nil, fmt.Errorf("element table has no bodies")
	}
	logger.Debug("element table parsed", "bodies", len(table.Bodies), "unit", string(table.Unit), "format", "yaml")
	return table, nil
}

func yamlRow(node *yaml.Node) (OrbitalElements, error) {
	line := node.Line
	var row yamlBody
	if err := node.Decode(&row); err != nil {
		return OrbitalElements{}, malformed(line, "", "", "%v", err)
	}
	if row.Name == nil || *row.Name == "" {
		return OrbitalElements{}, missing(line, "", "name")
	}
	name := *row.Name

	fields := []struct {
		key string
		src *float64
	}{
		{"a", row.A},
		{"e", row.E},
		{"i", row.I},
		{"node", row.Node},
		{"peri", row.Peri},
	}
	for _, f := range fields {
		if f.src == nil {
			return OrbitalElements{}, missing(line, name, f.key)
		}
	}

	el := OrbitalElements{
		Name:          name,
		SemiMajorAxis: *row.A,
		Eccentricity:  *row.E,
		Inclination:   *row.I,
		AscendingNode: *row.Node,
		ArgPerihelion: *row.Peri,
	}
	switch {
	case row.PeriodDays != nil:
		el.PeriodDays = *row.PeriodDays
	case row.PeriodYears != nil:
		el.PeriodDays = *row.PeriodYears * DaysPerYear
	default:
		return OrbitalElements{}, missing(line, name, "period_days")
	}

	if err := Validate(el, line); err != nil {
		return OrbitalElements{}, err
	}
	return el, nil
}
