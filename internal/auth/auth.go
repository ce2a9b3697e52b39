// Package auth guards the API with a static Bearer token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ShlokMathur/planet-s-trajectory/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	// ReadOnlyPublic leaves GET and HEAD requests open so only mutating
	// endpoints need the token.
	ReadOnlyPublic bool `yaml:"read_only_public"`
}

// publicPaths never require a token: probes, metrics and the per-body
// lookups embedded by dashboards.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

const publicPrefix = "/api/v1/bodies/"

func public(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, publicPrefix)
}

// bearer returns the token of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearer(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware enforces the token on non-public paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.ReadOnlyPublic && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearer(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="orrery"`)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorBody{Error: "unauthorized", Code: "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
