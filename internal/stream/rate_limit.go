package stream

import (
	"sync"

	"github.com/ShlokMathur/planet-s-trajectory/internal/metrics"
)

// streamLimiter caps concurrent stream connections per IP and globally.
// SSE and WebSocket clients draw from the same budget; the connection
// gauges are kept per transport.
type streamLimiter struct {
	mu           sync.Mutex
	perIP        map[string]int
	perTransport map[string]int
	total        int
	maxPerIP     int
	maxTotal     int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP < 1 {
		maxPerIP = 1
	}
	if maxTotal < 1 {
		maxTotal = 1000
	}
	return &streamLimiter{
		perIP:        make(map[string]int),
		perTransport: make(map[string]int),
		maxPerIP:     maxPerIP,
		maxTotal:     maxTotal,
	}
}

// acquire takes a slot for ip. ok is false when the IP or the global limit
// is reached; otherwise release must be called exactly once. Extra calls
// to release are ignored.
func (l *streamLimiter) acquire(ip, transport string) (release func(), ok bool) {
	l.mu.Lock()
	if l.total >= l.maxTotal || l.perIP[ip] >= l.maxPerIP {
		l.mu.Unlock()
		return nil, false
	}
	l.perIP[ip]++
	l.perTransport[transport]++
	l.total++
	l.mu.Unlock()
	metrics.StreamConnected(transport, 1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.perIP[ip]--
			if l.perIP[ip] <= 0 {
				delete(l.perIP, ip)
			}
			l.perTransport[transport]--
			l.total--
			l.mu.Unlock()
			metrics.StreamConnected(transport, -1)
		})
	}, true
}

// count returns the open connections of ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// open returns the open connections of one transport.
func (l *streamLimiter) open(transport string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perTransport[transport]
}
