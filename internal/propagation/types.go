package propagation

import (
	"fmt"
	"math"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
)

// SolverMode selects how a body's in-plane position is obtained.
type SolverMode string

const (
	// EpochBased advances each body from the reference epoch with the
	// first-order equation of centre.
	EpochBased SolverMode = "epoch"
	// CircularLayout spreads the bodies evenly around circles of radius a.
	// Illustrative only; the date does not move anything.
	CircularLayout SolverMode = "circular"
	// VelocityBased advances reference coordinates by the angle swept at a
	// constant orbital speed.
	VelocityBased SolverMode = "velocity"
)

// TransformMode selects how an in-plane position reaches the ecliptic frame.
type TransformMode string

const (
	// FullEcliptic applies the three-angle rotation (ω, Ω, i).
	FullEcliptic TransformMode = "ecliptic"
	// Simplified rotates in-plane by one angle and scales z by cos(i).
	Simplified TransformMode = "simplified"
)

// ParseSolverMode accepts a solver name. Empty selects EpochBased.
func ParseSolverMode(s string) (SolverMode, error) {
	switch SolverMode(s) {
	case "", EpochBased:
		return EpochBased, nil
	case CircularLayout, VelocityBased:
		return SolverMode(s), nil
	}
	return "", fmt.Errorf("%w: solver %q", ErrUnsupportedMode, s)
}

// ParseTransformMode accepts a transform name. Empty selects FullEcliptic.
func ParseTransformMode(s string) (TransformMode, error) {
	switch TransformMode(s) {
	case "", FullEcliptic:
		return FullEcliptic, nil
	case Simplified:
		return Simplified, nil
	}
	return "", fmt.Errorf("%w: transform %q", ErrUnsupportedMode, s)
}

// Config is the immutable description of one computation. It is built once
// and passed to every call; nothing in this package keeps load-time state.
type Config struct {
	// Epoch overrides the table's reference epoch when non-zero.
	Epoch     time.Time     `json:"epoch,omitempty" yaml:"epoch"`
	Solver    SolverMode    `json:"solver" yaml:"solver"`
	Transform TransformMode `json:"transform" yaml:"transform"`
	// Scale multiplies every output coordinate. Zero means 1.
	Scale float64 `json:"scale" yaml:"scale"`
}

// DefaultConfig is the canonical epoch-based, full-ecliptic computation.
func DefaultConfig() Config {
	return Config{Solver: EpochBased, Transform: FullEcliptic, Scale: 1}
}

// Validate rejects unknown modes and unsupported combinations.
func (c Config) Validate() error {
	if _, err := ParseSolverMode(string(c.Solver)); err != nil {
		return err
	}
	if _, err := ParseTransformMode(string(c.Transform)); err != nil {
		return err
	}
	if c.Solver == VelocityBased && c.Transform != Simplified {
		return fmt.Errorf("%w: velocity solver only supports the simplified transform", ErrUnsupportedMode)
	}
	if c.Scale < 0 || math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) {
		return fmt.Errorf("%w: scale must be positive and finite, got %v", ErrUnsupportedMode, c.Scale)
	}
	return nil
}

// Override returns c with the non-empty arguments applied. Choosing a solver
// without a transform resets the transform to that solver's default.
func (c Config) Override(solver, transform string, scale float64) (Config, error) {
	if solver != "" {
		m, err := ParseSolverMode(solver)
		if err != nil {
			return c, err
		}
		if m != c.Solver {
			c.Solver = m
			c.Transform = ""
		}
	}
	if transform != "" {
		m, err := ParseTransformMode(transform)
		if err != nil {
			return c, err
		}
		c.Transform = m
	}
	if scale != 0 {
		c.Scale = scale
	}
	c = c.withDefaults()
	return c, c.Validate()
}

func (c Config) withDefaults() Config {
	if c.Solver == "" {
		c.Solver = EpochBased
	}
	if c.Transform == "" {
		if c.Solver == VelocityBased {
			c.Transform = Simplified
		} else {
			c.Transform = FullEcliptic
		}
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	return c
}

// PositionSample is one body's position at the requested date. Coordinates
// and distance share the table unit.
type PositionSample struct {
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Distance float64 `json:"distance"`
}

// PositionSet is the result of one batch computation. Samples follow the
// table order.
type PositionSet struct {
	Date        time.Time        `json:"date"`
	Epoch       time.Time        `json:"epoch"`
	ElapsedDays int              `json:"elapsed_days"`
	JulianDay   float64          `json:"julian_day"`
	Solver      SolverMode       `json:"solver"`
	Transform   TransformMode    `json:"transform"`
	Scale       float64          `json:"scale"`
	Unit        elements.Unit    `json:"unit"`
	Samples     []PositionSample `json:"samples"`
}

// Lookup returns the sample of the named body.
func (ps *PositionSet) Lookup(name string) (PositionSample, bool) {
	for _, s := range ps.Samples {
		if s.Name == name {
			return s, true
		}
	}
	return PositionSample{}, false
}

// PropConfig sizes the timeline worker pool.
type PropConfig struct {
	Workers   int // worker pool size (default: runtime.NumCPU())
	MaxFrames int // longest timeline served in one call
}
