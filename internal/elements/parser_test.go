package elements

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const sampleCSV = `name,a,e,i,node,peri,period_years
Mercury,0.387,0.206,7.0,48.33,29.12,0.241
Venus,0.723,0.007,3.39,76.68,54.88,0.615
Earth,1.000,0.017,0.00,0.00,102.94,1.000
`

func TestParseCSV(t *testing.T) {
	table, err := ParseCSV(strings.NewReader(sampleCSV), UnitAU, testLogger)
	require.NoError(t, err)
	require.Len(t, table.Bodies, 3)

	names := []string{table.Bodies[0].Name, table.Bodies[1].Name, table.Bodies[2].Name}
	assert.Equal(t, []string{"Mercury", "Venus", "Earth"}, names, "load order must be preserved")

	earth, ok := table.Lookup("Earth")
	require.True(t, ok)
	assert.Equal(t, 1.0, earth.SemiMajorAxis)
	assert.Equal(t, 102.94, earth.ArgPerihelion)
	assert.InDelta(t, 365.25, earth.PeriodDays, 1e-9)
	assert.Equal(t, UnitAU, table.Unit)
	assert.True(t, table.Epoch.Equal(DefaultEpoch))
}

func TestParseCSVHeaderAliases(t *testing.T) {
	input := "Planet, Semi_Major_Axis, Eccentricity, Inclination, Ω, ω, period_days\n" +
		"Mars, 1.524, 0.093, 1.85, 49.56, 286.50, 687.0\n"

	table, err := ParseCSV(strings.NewReader(input), UnitAU, testLogger)
	require.NoError(t, err)
	require.Len(t, table.Bodies, 1)

	mars := table.Bodies[0]
	assert.Equal(t, 49.56, mars.AscendingNode, "Ω maps to the ascending node")
	assert.Equal(t, 286.50, mars.ArgPerihelion, "ω maps to the argument of perihelion")
	assert.Equal(t, 687.0, mars.PeriodDays)
}

func TestParseCSVRejects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel error
		line     int
		field    string
	}{
		{
			name:     "missing value",
			input:    "name,a,e,i,node,peri,period_days\nEarth,1.0,,0,0,102.94,365.25\n",
			sentinel: ErrMissingField,
			line:     2,
			field:    "e",
		},
		{
			name:     "missing period column",
			input:    "name,a,e,i,node,peri\nEarth,1.0,0.017,0,0,102.94\n",
			sentinel: ErrMissingField,
			line:     2,
			field:    "period_days",
		},
		{
			name:     "non numeric",
			input:    "name,a,e,i,node,peri,period_days\nEarth,one,0.017,0,0,102.94,365.25\n",
			sentinel: ErrMalformedRow,
			line:     2,
			field:    "a",
		},
		{
			name:     "zero period",
			input:    "name,a,e,i,node,peri,period_days\nEarth,1.0,0.017,0,0,102.94,0\n",
			sentinel: ErrMalformedRow,
			line:     2,
			field:    "period_days",
		},
		{
			name:     "eccentricity out of range",
			input:    "name,a,e,i,node,peri,period_days\nComet,1.0,1.2,0,0,0,100\n",
			sentinel: ErrMalformedRow,
			line:     2,
			field:    "e",
		},
		{
			name:     "duplicate body",
			input:    "name,a,e,i,node,peri,period_days\nEarth,1,0,0,0,0,365\nEarth,1,0,0,0,0,365\n",
			sentinel: ErrMalformedRow,
			line:     3,
			field:    "name",
		},
		{
			name:     "bad row after good rows",
			input:    "name,a,e,i,node,peri,period_days\nEarth,1,0,0,0,0,365\nMars,1.5,0.09,1.85,49.56,286.5,NaN\n",
			sentinel: ErrMalformedRow,
			line:     3,
			field:    "period_days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(strings.NewReader(tt.input), UnitAU, testLogger)
			require.Error(t, err)
			assert.Nil(t, table, "whole load must be rejected")
			assert.ErrorIs(t, err, tt.sentinel)

			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr), "error should carry a *RowError")
			assert.Equal(t, tt.line, rowErr.Line)
			assert.Equal(t, tt.field, rowErr.Field)
		})
	}
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), UnitAU, testLogger)
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("name,a,e,i,node,peri,period_days\n"), UnitAU, testLogger)
	assert.Error(t, err)
}

func TestParseYAML(t *testing.T) {
	input := `
unit: km
epoch: 2024-03-20
bodies:
  - name: Earth
    a: 149597870.7
    e: 0.017
    i: 0
    node: 0
    peri: 102.94
    period_days: 365.25
  - {name: Mars, a: 227939200, e: 0.093, i: 1.85, node: 49.56, peri: 286.5, period_years: 1.881}
`
	table, err := ParseYAML(strings.NewReader(input), UnitAU, testLogger)
	require.NoError(t, err)

	assert.Equal(t, UnitKM, table.Unit)
	assert.Equal(t, "2024-03-20", table.Epoch.Format("2006-01-02"))
	require.Len(t, table.Bodies, 2)
	assert.Equal(t, "Mars", table.Bodies[1].Name)
	assert.InDelta(t, 1.881*365.25, table.Bodies[1].PeriodDays, 1e-9)
}

func TestParseYAMLMissingField(t *testing.T) {
	input := `
bodies:
  - name: Earth
    a: 1
    e: 0.017
    node: 0
    peri: 102.94
    period_days: 365.25
`
	_, err := ParseYAML(strings.NewReader(input), UnitAU, testLogger)
	require.ErrorIs(t, err, ErrMissingField)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, "i", rowErr.Field)
	assert.Equal(t, "Earth", rowErr.Body)
	assert.Equal(t, 3, rowErr.Line)
}

func TestParseYAMLMalformed(t *testing.T) {
	input := `
bodies:
  - {name: Earth, a: far, e: 0.017, i: 0, node: 0, peri: 102.94, period_days: 365.25}
`
	_, err := ParseYAML(strings.NewReader(input), UnitAU, testLogger)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestDefaultTable(t *testing.T) {
	table := Default()
	require.Len(t, table.Bodies, 9)
	assert.Equal(t, "Mercury", table.Bodies[0].Name)
	assert.Equal(t, "Pluto", table.Bodies[8].Name)

	for i, b := range table.Bodies {
		assert.NoError(t, Validate(b, i+1), "built-in body %s", b.Name)
	}

	jupiter, ok := table.Lookup("Jupiter")
	require.True(t, ok)
	assert.InDelta(t, 11.862*365.25, jupiter.PeriodDays, 1e-9)
}

func TestParseDispatch(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("tables/planets.yml"))
	assert.Equal(t, FormatYAML, DetectFormat("https://example.org/planets.YAML"))
	assert.Equal(t, FormatCSV, DetectFormat("planets.csv"))

	_, err := Parse(strings.NewReader(sampleCSV), "toml", UnitAU, testLogger)
	assert.Error(t, err)
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"": UnitAU, "au": UnitAU, "km": UnitKM, "10^6 km": UnitMKM} {
		got, err := ParseUnit(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "ParseUnit(%q)", in)
	}
	_, err := ParseUnit("parsec")
	assert.Error(t, err)
}
