package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ShlokMathur/planet-s-trajectory/internal/events"
	"github.com/ShlokMathur/planet-s-trajectory/internal/propagation"
)

// today is the default date of every dated request.
func today() string {
	return time.Now().UTC().Format(propagation.DateLayout)
}

func dateParam(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return today()
}

func intParam(r *http.Request, key string, def, min, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer in [%d, %d]", key, min, max)
	}
	return n, nil
}

// computation applies the solver, transform and scale query parameters to
// base.
func computation(r *http.Request, base propagation.Config) (propagation.Config, error) {
	q := r.URL.Query()
	var scale float64
	if v := q.Get("scale"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil || s <= 0 {
			return base, fmt.Errorf("%w: scale must be a positive number", propagation.ErrUnsupportedMode)
		}
		scale = s
	}
	return base.Override(q.Get("solver"), q.Get("transform"), scale)
}

// pairsParam reads a=..&b=.. or repeated pair=A,B.
func pairsParam(r *http.Request) ([]events.Pair, error) {
	q := r.URL.Query()
	var pairs []events.Pair
	if a, b := q.Get("a"), q.Get("b"); a != "" || b != "" {
		if a == "" || b == "" {
			return nil, fmt.Errorf("both a and b are required")
		}
		pairs = append(pairs, events.Pair{A: a, B: b})
	}
	for _, p := range q["pair"] {
		a, b, ok := strings.Cut(p, ",")
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("pair %q must be NAME,NAME", p)
		}
		pairs = append(pairs, events.Pair{A: strings.TrimSpace(a), B: strings.TrimSpace(b)})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one pair is required (a and b, or pair=A,B)")
	}
	return pairs, nil
}
