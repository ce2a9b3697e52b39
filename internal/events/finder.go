package events

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/soniakeys/unit"

	"github.com/ShlokMathur/planet-s-trajectory/internal/elements"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
	"github.com/ShlokMathur/planet-s-trajectory/internal/transform"
)

// Kind names a heliocentric alignment.
type Kind string

const (
	// Conjunction: both bodies share a heliocentric longitude.
	Conjunction Kind = "conjunction"
	// Opposition: the bodies sit on opposite sides of the Sun.
	Opposition Kind = "opposition"
)

// Event is a single alignment of two bodies.
type Event struct {
	Kind        Kind      `json:"kind"`
	Time        time.Time `json:"time"`
	ElapsedDays float64   `json:"elapsed_days"`
	// Separation is the straight-line distance between the bodies, in the
	// table unit.
	Separation float64 `json:"separation"`
	// LongitudeDeg is the heliocentric longitude of the first body.
	LongitudeDeg float64 `json:"longitude_deg"`
	// Elongation is the second body as seen from the first.
	Elongation transform.Observation `json:"elongation"`
}

// Pair names two bodies.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// PairEvents holds the alignments found for one pair.
type PairEvents struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Events []Event `json:"events"`
	Error  string  `json:"error,omitempty"`
}

// Request holds the parameters of an alignment search.
type Request struct {
	Config    propagation.Config
	Pairs     []Pair
	Start     time.Time
	Days      int
	MaxEvents int
}

// MaxSearchDays bounds a single search to about a century.
const MaxSearchDays = 36525

const (
	coarseStepDays = 1.0
	// Bisection stops below about nine seconds.
	toleranceDays = 1e-4
)

// ErrSameBody rejects a pair naming one body twice.
var ErrSameBody = errors.New("pair names the same body twice")

// Validate checks the request bounds.
func (r Request) Validate() error {
	if r.Days < 1 || r.Days > MaxSearchDays {
		return fmt.Errorf("%w: days must be within [1, %d], got %d", propagation.ErrInvalidRange, MaxSearchDays, r.Days)
	}
	if len(r.Pairs) == 0 {
		return fmt.Errorf("%w: no body pairs", propagation.ErrInvalidRange)
	}
	return nil
}

// Find searches every pair for conjunctions and oppositions in
// [Start, Start+Days]. Each pair runs in its own goroutine, bounded by a
// semaphore. A failing pair reports its error without affecting the others.
func Find(ctx context.Context, ds *elements.Dataset, req Request) ([]PairEvents, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	results := make([]PairEvents, len(req.Pairs))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, pair := range req.Pairs {
		wg.Add(1)
		go func(idx int, p Pair) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = PairEvents{A: p.A, B: p.B, Error: "cancelled"}
				return
			}

			events, err := findPair(ctx, ds, req, p)
			if err != nil {
				results[idx] = PairEvents{A: p.A, B: p.B, Error: err.Error()}
				return
			}
			results[idx] = PairEvents{A: p.A, B: p.B, Events: events}
		}(i, pair)
	}

	wg.Wait()
	return results, nil
}

// findPair scans one pair day by day and refines each bracketed crossing.
func findPair(ctx context.Context, ds *elements.Dataset, req Request, pair Pair) ([]Event, error) {
	if pair.A == pair.B {
		return nil, fmt.Errorf("%w: %q", ErrSameBody, pair.A)
	}
	a, err := propagation.Trajectory(req.Config, ds, pair.A)
	if err != nil {
		return nil, err
	}
	b, err := propagation.Trajectory(req.Config, ds, pair.B)
	if err != nil {
		return nil, err
	}

	// Both paths come from one table and share its epoch.
	epoch := a.Epoch
	from := req.Start.Sub(epoch).Hours() / 24
	to := from + float64(req.Days)

	targets := []struct {
		kind   Kind
		offset unit.Angle
	}{
		{Conjunction, 0},
		{Opposition, math.Pi},
	}

	var events []Event
	for _, target := range targets {
		h := func(days float64) float64 {
			la := transform.Longitude(a.At(days))
			lb := transform.Longitude(b.At(days))
			return wrapPi(la - lb - target.offset)
		}

		t0, h0 := from, h(from)
		for t0 < to {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			t1 := math.Min(t0+coarseStepDays, to)
			h1 := h(t1)

			// A sign change near zero is a crossing; near ±π it is the wrap.
			if crosses(h0, h1) {
				root := bisect(h, t0, t1, h0)
				events = append(events, newEvent(target.kind, epoch, root, a, b))
			}
			t0, h0 = t1, h1
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ElapsedDays < events[j].ElapsedDays })
	if req.MaxEvents > 0 && len(events) > req.MaxEvents {
		events = events[:req.MaxEvents]
	}
	return events, nil
}

func crosses(h0, h1 float64) bool {
	if math.Abs(h0) > math.Pi/2 || math.Abs(h1) > math.Pi/2 {
		return false
	}
	return (h0 < 0 && h1 >= 0) || (h0 > 0 && h1 <= 0)
}

// bisect narrows a bracketed root of h down to toleranceDays.
func bisect(h func(float64) float64, lo, hi, hlo float64) float64 {
	for hi-lo > toleranceDays {
		mid := (lo + hi) / 2
		hm := h(mid)
		if (hlo < 0) == (hm < 0) && hm != 0 {
			lo, hlo = mid, hm
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func newEvent(kind Kind, epoch time.Time, days float64, a, b *propagation.Path) Event {
	pa, pb := a.At(days), b.At(days)
	return Event{
		Kind:         kind,
		Time:         epoch.Add(time.Duration(days * 24 * float64(time.Hour))).UTC().Round(time.Second),
		ElapsedDays:  days,
		Separation:   pb.Sub(pa).Norm(),
		LongitudeDeg: transform.Longitude(pa).Deg(),
		Elongation:   transform.Observe(pa, pb),
	}
}

// wrapPi folds an angle into (−π, π].
func wrapPi(a unit.Angle) float64 {
	r := math.Mod(a.Rad(), 2*math.Pi)
	switch {
	case r > math.Pi:
		r -= 2 * math.Pi
	case r <= -math.Pi:
		r += 2 * math.Pi
	}
	return r
}
