package httputil

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	ips      map[string]*limiterEntry
	r        rate.Limit
	b        int
	idleTTL  time.Duration
	lastScan time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows r requests per second with bursts of b per IP.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:     make(map[string]*limiterEntry),
		r:       r,
		b:       b,
		idleTTL: 10 * time.Minute,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use. Buckets
// idle for longer than the TTL are dropped.
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastScan) > l.idleTTL {
		for k, e := range l.ips {
			if now.Sub(e.lastSeen) > l.idleTTL {
				delete(l.ips, k)
			}
		}
		l.lastScan = now
	}

	entry, exists := l.ips[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Len returns the number of tracked IPs.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// RateLimit rejects requests over the per-IP budget with 429. Exempt paths
// (probes, metrics) pass through untouched.
func RateLimit(l *IPRateLimiter, trustProxy bool, exempt func(path string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || (exempt != nil && exempt(r.URL.Path)) {
				next.ServeHTTP(w, r)
				return
			}

			lim := l.GetLimiter(ClientIP(r, trustProxy))
			if !lim.Allow() {
				metrics.RecordRateLimited()
				retry := 1
				if l.r > 0 {
					retry = int(1/float64(l.r)) + 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate limit exceeded", Code: "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
