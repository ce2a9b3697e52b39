package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address used to key per-client limits.
//
// With trustProxy the proxy headers are consulted first, in order:
// Forwarded (RFC 7239, first for=), X-Forwarded-For (leftmost) and
// X-Real-IP. A header value that is not an IP address is skipped. Only
// enable trustProxy behind a reverse proxy that overwrites these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, candidate := range []string{
			forwardedFor(r.Header.Get("Forwarded")),
			firstHop(r.Header.Get("X-Forwarded-For")),
			r.Header.Get("X-Real-IP"),
		} {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}
	if ip := parseIP(r.RemoteAddr); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func firstHop(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return first
}

// forwardedFor extracts the for= parameter of the first Forwarded element.
func forwardedFor(header string) string {
	for _, pair := range strings.Split(firstHop(header), ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.EqualFold(key, "for") {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}

// parseIP accepts "ip", "ip:port", "[v6]" and "[v6]:port" and returns the
// canonical IP text, or "" when s holds no address.
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
