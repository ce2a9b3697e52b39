package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		cfg    Config
		method string
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "POST", "/api/v1/elements/reload", "", http.StatusOK},
		{"probe exempt", Config{Enabled: true, Token: "s3cret"}, "GET", "/healthz", "", http.StatusOK},
		{"metrics exempt", Config{Enabled: true, Token: "s3cret"}, "GET", "/metrics", "", http.StatusOK},
		{"body prefix exempt", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/bodies/Earth", "", http.StatusOK},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "Bearer nope", http.StatusUnauthorized},
		{"no bearer prefix", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "s3cret", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "bearer s3cret", http.StatusOK},
		{"empty bearer", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "Bearer ", http.StatusUnauthorized},
		{"basic scheme", Config{Enabled: true, Token: "s3cret"}, "GET", "/api/v1/positions", "Basic s3cret", http.StatusUnauthorized},
		{"read-only public GET", Config{Enabled: true, Token: "s3cret", ReadOnlyPublic: true}, "GET", "/api/v1/positions", "", http.StatusOK},
		{"read-only public POST", Config{Enabled: true, Token: "s3cret", ReadOnlyPublic: true}, "POST", "/api/v1/elements/reload", "", http.StatusUnauthorized},
		{"read-only public POST with token", Config{Enabled: true, Token: "s3cret", ReadOnlyPublic: true}, "POST", "/api/v1/elements/reload", "Bearer s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Middleware(tt.cfg)(ok).ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if w.Code == http.StatusUnauthorized {
				if got := w.Header().Get("WWW-Authenticate"); got == "" {
					t.Error("401 without WWW-Authenticate challenge")
				}
				if !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
					t.Errorf("body = %s", w.Body)
				}
			}
		})
	}
}
