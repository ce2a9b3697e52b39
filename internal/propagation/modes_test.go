package propagation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
)

func velocityDataset() *elements.Dataset {
	return &elements.Dataset{
		Velocity: &elements.VelocityTable{
			Epoch: elements.DefaultVelocityEpoch,
			Rows: []elements.VelocityElements{
				{Name: "Earth", PeriodDays: 365.2, VelocityKmS: 29.8, PerimeterMkm: 940, InclinationDeg: 0},
				{Name: "Mars", PeriodDays: 687, VelocityKmS: 24.1, PerimeterMkm: 1429, InclinationDeg: 0},
			},
			Reference: map[string]elements.Coordinates{
				"Earth": {X: -0.5312, Y: 0.8276, Z: 0},
				"Mars":  {X: -0.1205, Y: 1.5823, Z: 0.0361},
			},
		},
	}
}

func TestParseModes(t *testing.T) {
	if m, err := ParseSolverMode(""); err != nil || m != EpochBased {
		t.Errorf("ParseSolverMode(\"\") = %v, %v", m, err)
	}
	if m, err := ParseTransformMode("simplified"); err != nil || m != Simplified {
		t.Errorf("ParseTransformMode(simplified) = %v, %v", m, err)
	}
	if _, err := ParseSolverMode("nbody"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("ParseSolverMode(nbody) error = %v, want ErrUnsupportedMode", err)
	}
	if _, err := ParseTransformMode("galactic"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("ParseTransformMode(galactic) error = %v, want ErrUnsupportedMode", err)
	}
}

func TestUnsupportedCombination(t *testing.T) {
	cfg := Config{Solver: VelocityBased, Transform: FullEcliptic}
	if _, err := ComputePositions(cfg, velocityDataset(), "2025-01-16"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("velocity × ecliptic error = %v, want ErrUnsupportedMode", err)
	}
	if _, err := ComputePositions(Config{Scale: -1}, velocityDataset(), "2025-01-16"); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("negative scale error = %v, want ErrUnsupportedMode", err)
	}
}

func TestNonFiniteScale(t *testing.T) {
	for _, scale := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := (Config{Solver: EpochBased, Transform: FullEcliptic, Scale: scale}).Validate(); !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("Validate(scale=%v) = %v, want ErrUnsupportedMode", scale, err)
		}
	}
}

func TestMissingTable(t *testing.T) {
	if _, err := ComputePositions(DefaultConfig(), nil, "2025-01-16"); !errors.Is(err, ErrNoTable) {
		t.Errorf("nil dataset error = %v, want ErrNoTable", err)
	}
	if _, err := ComputePositions(DefaultConfig(), velocityDataset(), "2025-01-16"); !errors.Is(err, ErrNoTable) {
		t.Errorf("epoch solver without keplerian table error = %v, want ErrNoTable", err)
	}
	cfg := Config{Solver: VelocityBased}
	if _, err := ComputePositions(cfg, &elements.Dataset{Keplerian: elements.Default()}, "2025-01-16"); !errors.Is(err, ErrNoTable) {
		t.Errorf("velocity solver without velocity table error = %v, want ErrNoTable", err)
	}
}

func TestCircularLayout(t *testing.T) {
	table := elements.Default()
	for _, mode := range []TransformMode{Simplified, FullEcliptic} {
		samples := CircularLayoutPositions(table.Bodies, mode)
		if len(samples) != len(table.Bodies) {
			t.Fatalf("CircularLayoutPositions returned %d samples, want %d", len(samples), len(table.Bodies))
		}
		for i, s := range samples {
			el := table.Bodies[i]
			if s.Name != el.Name || s.Distance != el.SemiMajorAxis {
				t.Errorf("%s: sample %+v", mode, s)
			}
			if r := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z); !relClose(r, el.SemiMajorAxis, 1e-12) {
				t.Errorf("%s %s: radius = %v, want %v", mode, el.Name, r, el.SemiMajorAxis)
			}
		}
	}

	// Simplified keeps the layout flat and at i·2π/N.
	samples := CircularLayoutPositions(table.Bodies, Simplified)
	for i, s := range samples {
		if s.Z != 0 {
			t.Errorf("%s: z = %v, want 0", s.Name, s.Z)
		}
		want := LayoutAngle(i, len(samples)).Rad()
		got := math.Atan2(s.Y, s.X)
		if got < 0 {
			got += 2 * math.Pi
		}
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: angle = %v, want %v", s.Name, got, want)
		}
	}
}

func TestCircularLayoutIgnoresDate(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	cfg := Config{Solver: CircularLayout, Transform: Simplified}
	a, err := ComputePositions(cfg, ds, "2000-01-01")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputePositions(cfg, ds, "2040-06-30")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Samples, b.Samples); diff != "" {
		t.Errorf("layout moved with the date:\n%s", diff)
	}
}

func TestAngleMoved(t *testing.T) {
	// A speed that covers the perimeter exactly once per period.
	const perimeter, period = 940.0, 365.25
	v := perimeter * 1e6 / (period * secondsPerDay)

	tests := []struct {
		days float64
		want float64
	}{
		{0, 0},
		{period / 4, 90},
		{period, 360},
		{2 * period, 720},
		{-period / 2, -180},
	}
	for _, tt := range tests {
		got := AngleMoved(v, perimeter, tt.days).Deg()
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AngleMoved(%v days) = %v deg, want %v", tt.days, got, tt.want)
		}
	}
}

func TestVelocityReproducesReferenceAtEpoch(t *testing.T) {
	ds := velocityDataset()
	set, err := ComputePositions(Config{Solver: VelocityBased, Transform: Simplified}, ds, "2025-01-16")
	if err != nil {
		t.Fatalf("ComputePositions: %v", err)
	}
	if set.ElapsedDays != 0 {
		t.Fatalf("ElapsedDays = %d, want 0", set.ElapsedDays)
	}
	for _, s := range set.Samples {
		ref := ds.Velocity.Reference[s.Name]
		if s.X != ref.X || s.Y != ref.Y || s.Z != ref.Z {
			t.Errorf("%s = (%v, %v, %v), want reference %+v", s.Name, s.X, s.Y, s.Z, ref)
		}
	}
}

func TestVelocityMovesAlongOrbit(t *testing.T) {
	ds := velocityDataset()
	set, err := ComputePositions(Config{Solver: VelocityBased}, ds, "2025-02-16")
	if err != nil {
		t.Fatalf("ComputePositions: %v", err)
	}
	earth, _ := set.Lookup("Earth")
	ref := ds.Velocity.Reference["Earth"]

	// A planar rotation keeps the distance.
	if !relClose(earth.Distance, math.Hypot(ref.X, ref.Y), 1e-12) {
		t.Errorf("Earth distance = %v, want %v", earth.Distance, math.Hypot(ref.X, ref.Y))
	}
	if earth.X == ref.X && earth.Y == ref.Y {
		t.Error("Earth did not move")
	}
}

func TestVelocityMissingReference(t *testing.T) {
	ds := velocityDataset()
	delete(ds.Velocity.Reference, "Mars")
	_, err := ComputePositions(Config{Solver: VelocityBased}, ds, "2025-01-20")
	if !errors.Is(err, ErrMissingReference) {
		t.Fatalf("error = %v, want ErrMissingReference", err)
	}
}

func TestEpochSimplifiedIsFlat(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	set, err := ComputePositions(Config{Transform: Simplified}, ds, "2030-03-03")
	if err != nil {
		t.Fatal(err)
	}
	full, err := ComputePositions(DefaultConfig(), ds, "2030-03-03")
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range set.Samples {
		if s.Z != 0 {
			t.Errorf("%s: z = %v, want 0", s.Name, s.Z)
		}
		if !relClose(s.Distance, full.Samples[i].Distance, 1e-12) {
			t.Errorf("%s: distance differs between transforms", s.Name)
		}
	}
}

func TestOrbitCurve(t *testing.T) {
	el := earth()
	pts := OrbitCurve(el, FullEcliptic, 0)
	if len(pts) != DefaultCurvePoints+1 {
		t.Fatalf("OrbitCurve returned %d points, want %d", len(pts), DefaultCurvePoints+1)
	}
	first, last := pts[0], pts[len(pts)-1]
	if first.Sub(last).Norm() > 1e-12 {
		t.Errorf("curve not closed: first %+v last %+v", first, last)
	}

	// Perihelion and aphelion distances.
	if !relClose(first.Norm(), el.SemiMajorAxis*(1-el.Eccentricity), 1e-12) {
		t.Errorf("perihelion = %v", first.Norm())
	}
	if !relClose(pts[50].Norm(), el.SemiMajorAxis*(1+el.Eccentricity), 1e-12) {
		t.Errorf("aphelion = %v", pts[50].Norm())
	}
}

func TestOrbitCurves(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	cfg := DefaultConfig()
	cfg.Scale = 5

	orbits, err := OrbitCurves(cfg, ds, 36)
	if err != nil {
		t.Fatal(err)
	}
	if len(orbits) != 9 || orbits[0].Name != "Mercury" || len(orbits[0].Points) != 37 {
		t.Fatalf("unexpected orbits: %d bodies", len(orbits))
	}

	circ, err := OrbitCurves(Config{Solver: CircularLayout}, ds, 36)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range circ[8].Points {
		if !relClose(p.Norm(), 39.482, 1e-12) {
			t.Fatalf("circular orbit radius = %v, want 39.482", p.Norm())
		}
	}

	vel, err := OrbitCurves(Config{Solver: VelocityBased}, velocityDataset(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(vel) != 2 || len(vel[1].Points) != DefaultCurvePoints+1 {
		t.Fatalf("velocity orbits malformed")
	}

	if _, err := OrbitCurves(cfg, ds, MaxCurvePoints+1); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("oversized curve error = %v", err)
	}
}

func TestApproximationError(t *testing.T) {
	ring := elements.OrbitalElements{Name: "Ring", SemiMajorAxis: 1, PeriodDays: 100}
	if r := ApproximationError(ring, 37); math.Abs(r.ErrorDeg) > 1e-9 {
		t.Errorf("circular orbit error = %v deg, want 0", r.ErrorDeg)
	}

	table := elements.Default()
	reports := Accuracy(table, 181)
	if len(reports) != len(table.Bodies) {
		t.Fatalf("Accuracy returned %d reports", len(reports))
	}
	for _, r := range reports {
		// The dropped terms start at 5/4·e² sin 2M.
		bound := 2 * r.Eccentricity * r.Eccentricity * 180 / math.Pi
		if math.Abs(r.ErrorDeg) > bound+1e-6 {
			t.Errorf("%s: error %v deg exceeds %v", r.Name, r.ErrorDeg, bound)
		}
	}
}

func TestTimelineDates(t *testing.T) {
	start := time.Date(2024, 2, 27, 15, 4, 5, 0, time.UTC)
	dates, err := TimelineDates(start, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range dates {
		got = append(got, d.Format(DateLayout))
	}
	if diff := cmp.Diff([]string{"2024-02-27", "2024-02-29", "2024-03-02"}, got); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range [][2]int{{-1, 1}, {10, 0}} {
		if _, err := TimelineDates(start, bad[0], bad[1]); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("TimelineDates(%d, %d) error = %v", bad[0], bad[1], err)
		}
	}
}

func newTestPropagator(maxFrames int) *Propagator {
	store := elements.NewStore()
	store.Set(&elements.Dataset{Keplerian: elements.Default(), LoadedAt: time.Now()})
	return NewPropagator(store, PropConfig{Workers: 4, MaxFrames: maxFrames}, DefaultConfig(), testLogger())
}

func TestTimeline(t *testing.T) {
	p := newTestPropagator(0)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	sets, err := p.Timeline(context.Background(), p.Config(), start, 365, 5)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(sets) != 74 {
		t.Fatalf("Timeline returned %d frames, want 74", len(sets))
	}
	for i, s := range sets {
		if s.ElapsedDays != i*5 {
			t.Fatalf("frame %d ElapsedDays = %d, want %d", i, s.ElapsedDays, i*5)
		}
	}

	// Frames match single computations.
	single, err := p.PropagateDate(context.Background(), "2022-07-20")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(single, sets[40]); diff != "" {
		t.Errorf("timeline frame differs from single computation:\n%s", diff)
	}
}

func TestTimelineBounds(t *testing.T) {
	p := newTestPropagator(10)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := p.Timeline(context.Background(), p.Config(), start, 10, 1); !errors.Is(err, ErrTooManyFrames) {
		t.Errorf("11 frames error = %v, want ErrTooManyFrames", err)
	}
	if _, err := p.Timeline(context.Background(), p.Config(), start, 9, 1); err != nil {
		t.Errorf("10 frames: %v", err)
	}
}

func TestTimelineFailsWhole(t *testing.T) {
	p := newTestPropagator(0)
	cfg := Config{Solver: VelocityBased}
	_, err := p.Timeline(context.Background(), cfg, time.Now(), 30, 1)
	if !errors.Is(err, ErrNoTable) {
		t.Errorf("error = %v, want ErrNoTable", err)
	}
}

func TestTimelineCancellation(t *testing.T) {
	p := newTestPropagator(100000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sets, err := p.Timeline(ctx, p.Config(), time.Now(), 50000, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if sets != nil {
		t.Error("cancelled timeline returned frames")
	}
}

func TestPropagatorNoDataset(t *testing.T) {
	p := NewPropagator(elements.NewStore(), PropConfig{Workers: 1}, DefaultConfig(), testLogger())
	if _, err := p.PropagateDate(context.Background(), "2024-01-01"); !errors.Is(err, ErrNoTable) {
		t.Errorf("error = %v, want ErrNoTable", err)
	}
	if _, err := p.Accuracy("2024-01-01"); !errors.Is(err, ErrNoTable) {
		t.Errorf("accuracy error = %v, want ErrNoTable", err)
	}
}

func TestConfigOverride(t *testing.T) {
	base := DefaultConfig()

	cfg, err := base.Override("velocity", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Solver != VelocityBased || cfg.Transform != Simplified || cfg.Scale != 1 {
		t.Errorf("velocity override = %+v", cfg)
	}

	cfg, err = base.Override("", "simplified", 10)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Solver != EpochBased || cfg.Transform != Simplified || cfg.Scale != 10 {
		t.Errorf("transform override = %+v", cfg)
	}

	if _, err := base.Override("velocity", "ecliptic", 0); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("velocity × ecliptic override error = %v", err)
	}
	if _, err := base.Override("warp", "", 0); !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("unknown solver error = %v", err)
	}
}
