package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{" https://reelcast.app ", "", "http://localhost:3000"},
		AllowCredentials: true,
		MaxAge:           600,
	}

	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantMethods string
		wantNext    bool
	}{
		{name: "disabled without origins", cfg: CORSConfig{}, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusOK, wantNext: true},
		{name: "no origin header", cfg: cfg, method: http.MethodGet, wantStatus: http.StatusOK, wantNext: true},
		{name: "allowed origin trimmed", cfg: cfg, method: http.MethodGet, origin: "https://reelcast.app", wantStatus: http.StatusOK, wantOrigin: "https://reelcast.app", wantMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS", wantNext: true},
		{name: "disallowed origin", cfg: cfg, method: http.MethodGet, origin: "https://evil.example", wantStatus: http.StatusForbidden},
		{name: "preflight", cfg: cfg, method: http.MethodOptions, origin: "http://localhost:3000", wantStatus: http.StatusNoContent, wantOrigin: "http://localhost:3000", wantMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
		{name: "custom methods", cfg: CORSConfig{AllowedOrigins: []string{"https://a.example"}, AllowedMethods: []string{"GET"}}, method: http.MethodGet, origin: "https://a.example", wantStatus: http.StatusOK, wantOrigin: "https://a.example", wantMethods: "GET", wantNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			handler := CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/v1/videos/feed", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("Allow-Methods = %q, want %q", got, tt.wantMethods)
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://reelcast.app"}, AllowCredentials: true, MaxAge: 600})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/tips", nil)
	req.Header.Set("Origin", "https://reelcast.app")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	h := rr.Header()
	if h.Get("Access-Control-Max-Age") != "600" {
		t.Errorf("Max-Age = %q", h.Get("Access-Control-Max-Age"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials header")
	}
	if h.Get("Access-Control-Allow-Headers") != "Content-Type, Authorization, X-Request-ID" {
		t.Errorf("Allow-Headers = %q", h.Get("Access-Control-Allow-Headers"))
	}
	if h.Get("Vary") != "Origin" {
		t.Errorf("Vary = %q", h.Get("Vary"))
	}
}
