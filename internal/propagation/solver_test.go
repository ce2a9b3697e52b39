package propagation

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func relClose(got, want, tol float64) bool {
	if want == 0 {
		return math.Abs(got) <= tol
	}
	return math.Abs(got-want)/math.Abs(want) <= tol
}

func earth() elements.OrbitalElements {
	el, _ := elements.Default().Lookup("Earth")
	return el
}

func TestSolveCircularOrbit(t *testing.T) {
	el := elements.OrbitalElements{Name: "Ring", SemiMajorAxis: 2.5, PeriodDays: 500}
	for _, days := range []float64{-1000, -3, 0, 1, 181, 365.25, 12345} {
		p := Solve(el, days)
		if p.Distance != el.SemiMajorAxis {
			t.Errorf("Solve(e=0, %v).Distance = %v, want %v", days, p.Distance, el.SemiMajorAxis)
		}
		if !relClose(math.Hypot(p.X, p.Y), el.SemiMajorAxis, 1e-12) {
			t.Errorf("Solve(e=0, %v) |xy| = %v, want %v", days, math.Hypot(p.X, p.Y), el.SemiMajorAxis)
		}
	}
}

func TestSolvePeriodicity(t *testing.T) {
	for _, el := range elements.Default().Bodies {
		for _, days := range []float64{0, 17, 181, -400} {
			a := Solve(el, days)
			b := Solve(el, days+el.PeriodDays)
			if math.Abs(a.X-b.X) > 1e-9*el.SemiMajorAxis || math.Abs(a.Y-b.Y) > 1e-9*el.SemiMajorAxis {
				t.Errorf("%s: Solve(%v) = (%v, %v), Solve(t+P) = (%v, %v)", el.Name, days, a.X, a.Y, b.X, b.Y)
			}
		}
	}
}

func TestSolveMeanAnomalyNotWrapped(t *testing.T) {
	el := earth()
	p := Solve(el, 3*el.PeriodDays)
	if !relClose(p.MeanAnomaly.Rad(), 6*math.Pi, 1e-12) {
		t.Errorf("MeanAnomaly = %v rad, want 6π", p.MeanAnomaly.Rad())
	}
	if p := Solve(el, -181); p.MeanAnomaly >= 0 {
		t.Errorf("negative elapsed days gave MeanAnomaly = %v", p.MeanAnomaly)
	}
}

// referenceEarth recomputes the 2022-07-01 Earth position with plain math.
func referenceEarth() (x, y, z, r float64) {
	const (
		a     = 1.0
		e     = 0.017
		omega = 102.94 * math.Pi / 180
		days  = 181.0
	)
	M := 2 * math.Pi / 365.25 * days
	nu := M + 2*e*math.Sin(M)
	r = a * (1 - e*e) / (1 + e*math.Cos(nu))
	xo, yo := r*math.Cos(nu), r*math.Sin(nu)
	// i = 0 and Ω = 0 reduce the rotation to a turn by ω.
	x = xo*math.Cos(omega) - yo*math.Sin(omega)
	y = xo*math.Sin(omega) + yo*math.Cos(omega)
	return x, y, 0, r
}

func TestEarthExample(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	set, err := ComputePositions(DefaultConfig(), ds, "2022-07-01")
	if err != nil {
		t.Fatalf("ComputePositions: %v", err)
	}
	if set.ElapsedDays != 181 {
		t.Fatalf("ElapsedDays = %d, want 181", set.ElapsedDays)
	}

	p := Solve(earth(), 181)
	wantM := 2 * math.Pi / 365.25 * 181
	if !relClose(p.MeanAnomaly.Rad(), wantM, 1e-9) || !relClose(p.MeanAnomaly.Rad(), 3.11364, 1e-5) {
		t.Errorf("MeanAnomaly = %v, want %v", p.MeanAnomaly.Rad(), wantM)
	}

	got, ok := set.Lookup("Earth")
	if !ok {
		t.Fatal("Earth missing from position set")
	}
	x, y, z, r := referenceEarth()
	if !relClose(got.X, x, 1e-6) || !relClose(got.Y, y, 1e-6) || math.Abs(got.Z-z) > 1e-12 || !relClose(got.Distance, r, 1e-6) {
		t.Errorf("Earth = %+v, want (%v, %v, %v) r=%v", got, x, y, z, r)
	}
}

func TestEarthAtEpoch(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	set, err := ComputePositions(DefaultConfig(), ds, "2022-01-01")
	if err != nil {
		t.Fatalf("ComputePositions: %v", err)
	}
	got, _ := set.Lookup("Earth")

	// At the epoch every body sits at perihelion.
	r := 1 - 0.017
	omega := 102.94 * math.Pi / 180
	if !relClose(got.Distance, r, 1e-12) || !relClose(got.X, r*math.Cos(omega), 1e-9) || !relClose(got.Y, r*math.Sin(omega), 1e-9) {
		t.Errorf("Earth at epoch = %+v", got)
	}
}

func TestComputePositionsOrdering(t *testing.T) {
	table := &elements.Table{Unit: elements.UnitAU, Epoch: elements.DefaultEpoch}
	for _, name := range []string{"Zeta", "Alpha", "Mu"} {
		table.Bodies = append(table.Bodies, elements.OrbitalElements{Name: name, SemiMajorAxis: 1, PeriodDays: 100})
	}
	set, err := ComputePositions(DefaultConfig(), &elements.Dataset{Keplerian: table}, "2023-05-05")
	if err != nil {
		t.Fatalf("ComputePositions: %v", err)
	}

	var names []string
	for _, s := range set.Samples {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"Zeta", "Alpha", "Mu"}, names); diff != "" {
		t.Errorf("sample order mismatch (-want +got):\n%s", diff)
	}
}

func TestComputePositionsDoesNotMutate(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	before := *ds.Keplerian
	before.Bodies = append([]elements.OrbitalElements(nil), ds.Keplerian.Bodies...)

	cfg := DefaultConfig()
	cfg.Scale = 5
	for _, d := range []string{"2020-02-29", "2022-07-01", "2031-12-31"} {
		if _, err := ComputePositions(cfg, ds, d); err != nil {
			t.Fatalf("ComputePositions(%s): %v", d, err)
		}
	}
	if diff := cmp.Diff(before, *ds.Keplerian); diff != "" {
		t.Errorf("table mutated (-before +after):\n%s", diff)
	}
}

func TestComputePositionsInvalidDates(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	for _, in := range []string{"2025-13-40", "not-a-date", "2023-02-29", "2024-1-05", "", " 2024-01-05", "2024-01-05T00:00:00Z"} {
		set, err := ComputePositions(DefaultConfig(), ds, in)
		if set != nil {
			t.Errorf("ComputePositions(%q) returned a partial result", in)
		}
		if !errors.Is(err, ErrInvalidDateFormat) {
			t.Errorf("ComputePositions(%q) error = %v, want ErrInvalidDateFormat", in, err)
			continue
		}
		var de *DateError
		if !errors.As(err, &de) || de.Input != in {
			t.Errorf("ComputePositions(%q) error %v does not carry the input", in, err)
		}
	}

	if _, err := ComputePositions(DefaultConfig(), ds, "2024-02-29"); err != nil {
		t.Errorf("leap day rejected: %v", err)
	}
}

func TestComputePositionsScale(t *testing.T) {
	ds := &elements.Dataset{Keplerian: elements.Default()}
	one, err := ComputePositions(DefaultConfig(), ds, "2024-08-15")
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Scale = 5
	five, err := ComputePositions(cfg, ds, "2024-08-15")
	if err != nil {
		t.Fatal(err)
	}

	scaled := make([]PositionSample, len(one.Samples))
	for i, s := range one.Samples {
		scaled[i] = PositionSample{Name: s.Name, X: 5 * s.X, Y: 5 * s.Y, Z: 5 * s.Z, Distance: 5 * s.Distance}
	}
	if diff := cmp.Diff(scaled, five.Samples, cmpopts.EquateApprox(1e-12, 1e-12)); diff != "" {
		t.Errorf("scaled samples mismatch (-want +got):\n%s", diff)
	}
}

func TestComputePositionsNonFinite(t *testing.T) {
	table := &elements.Table{Epoch: elements.DefaultEpoch, Bodies: []elements.OrbitalElements{
		{Name: "Near", SemiMajorAxis: 1, PeriodDays: 10},
		{Name: "Far", SemiMajorAxis: 1e10, Eccentricity: 0.5, PeriodDays: 10},
	}}
	cfg := DefaultConfig()
	cfg.Scale = 1e300

	set, err := ComputePositions(cfg, &elements.Dataset{Keplerian: table}, "2022-01-02")
	if set != nil || !errors.Is(err, ErrNonFinitePosition) {
		t.Fatalf("ComputePositions = (%v, %v), want ErrNonFinitePosition", set, err)
	}
	var be *BodyError
	if !errors.As(err, &be) || be.Body != "Far" {
		t.Errorf("error %v should name body Far", err)
	}
}

func TestElapsedDays(t *testing.T) {
	epoch, _ := ParseDate("2022-01-01")
	tests := []struct {
		date string
		want int
	}{
		{"2022-01-01", 0},
		{"2022-07-01", 181},
		{"2021-12-31", -1},
		{"2023-01-01", 365},
		{"2025-01-16", 1111},
	}
	for _, tt := range tests {
		d, err := ParseDate(tt.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := ElapsedDays(epoch, d); got != tt.want {
			t.Errorf("ElapsedDays(%s) = %d, want %d", tt.date, got, tt.want)
		}
	}
}
