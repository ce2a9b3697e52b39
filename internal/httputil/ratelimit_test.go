package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestIPRateLimiterPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 2)

	a := l.GetLimiter("10.0.0.1")
	if l.GetLimiter("10.0.0.1") != a {
		t.Error("same IP should reuse its bucket")
	}
	if l.GetLimiter("10.0.0.2") == a {
		t.Error("different IPs should not share a bucket")
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	exempt := func(path string) bool { return path == "/healthz" }
	h := RateLimit(l, false, exempt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	// Burst of two, then rejected.
	for i := 0; i < 2; i++ {
		if w := do("/api/v1/positions", "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, w.Code)
		}
	}
	w := do("/api/v1/positions", "10.0.0.1:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// Other clients and exempt paths are unaffected.
	if w := do("/api/v1/positions", "10.0.0.2:1000"); w.Code != http.StatusOK {
		t.Errorf("other IP status = %d", w.Code)
	}
	if w := do("/healthz", "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Errorf("exempt path status = %d", w.Code)
	}
}

func TestRateLimitNilLimiter(t *testing.T) {
	h := RateLimit(nil, false, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
}
