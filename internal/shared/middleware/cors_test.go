package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"https://app.example.com:8443", []string{"app.example.com:8443"}, true},
		{"https://app.example.com:3000", []string{"app.example.com"}, true},
		{"https://App.Example.COM", []string{"app.example.com"}, true},
		{"https://app.example.com", []string{"  app.example.com  "}, true},
		{"http://localhost:5173", []string{"localhost"}, true},
		{"https://evil.example.net", []string{"app.example.com"}, false},
		{"https://sub.app.example.com", []string{"app.example.com"}, false},
		{"://invalid", []string{"app.example.com"}, false},
		{"null", []string{"app.example.com"}, false},
	}

	for _, tt := range tests {
		got := isOriginAllowed(tt.origin, tt.allowed)
		assert.Equal(t, tt.want, got, "isOriginAllowed(%q, %v)", tt.origin, tt.allowed)
	}
}

func TestCORS(t *testing.T) {
	allowed := []string{"app.example.com"}

	tests := []struct {
		name        string
		hosts       []string
		method      string
		path        string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCreds   bool
		reachesNext bool
	}{
		{
			name: "no hosts configured allows any origin", hosts: nil,
			method: http.MethodGet, path: "/api/connections", origin: "https://anything.test",
			wantStatus: http.StatusOK, wantOrigin: "*", reachesNext: true,
		},
		{
			name: "listed origin is echoed with credentials", hosts: allowed,
			method: http.MethodGet, path: "/api/connections", origin: "https://app.example.com",
			wantStatus: http.StatusOK, wantOrigin: "https://app.example.com", wantCreds: true, reachesNext: true,
		},
		{
			name: "unlisted origin is refused", hosts: allowed,
			method: http.MethodPost, path: "/api/sessions", origin: "https://evil.example.net",
			wantStatus: http.StatusForbidden,
		},
		{
			name: "server to server call without origin", hosts: allowed,
			method: http.MethodGet, path: "/api/transactions",
			wantStatus: http.StatusOK, reachesNext: true,
		},
		{
			name: "provider webhook skips origin check", hosts: allowed,
			method: http.MethodPost, path: "/webhooks/provider", origin: "https://evil.example.net",
			wantStatus: http.StatusOK, wantOrigin: "*", reachesNext: true,
		},
		{
			name: "health check skips origin check", hosts: allowed,
			method: http.MethodGet, path: "/health", origin: "https://monitor.test",
			wantStatus: http.StatusOK, wantOrigin: "*", reachesNext: true,
		},
		{
			name: "preflight answered without reaching handler", hosts: allowed,
			method: http.MethodOptions, path: "/api/sessions", origin: "https://app.example.com",
			wantStatus: http.StatusNoContent, wantOrigin: "https://app.example.com", wantCreds: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORS(tt.hosts)(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.reachesNext, reached)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantCreds {
				assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
