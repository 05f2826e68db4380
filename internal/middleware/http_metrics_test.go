package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/videos/abc123", "/v1/videos/{id}"},
		{"/v1/videos/abc123/comments", "/v1/videos/{id}/comments"},
		{"/v1/videos/feed", "/v1/videos/feed"},
		{"/v1/creators/u1/analytics", "/v1/creators/{id}/analytics"},
		{"/v1/creators/u1/tips/received", "/v1/creators/{id}/tips/received"},
		{"/v1/scheduled-posts/p9/cancel", "/v1/scheduled-posts/{id}/cancel"},
		{"/v1/users/me/settings", "/v1/users/me/settings"},
		{"/v1/usernames/Alice", "/v1/usernames/{id}"},
		{"/v1/tips/sent", "/v1/tips/sent"},
		{"/v1/analytics/views", "/v1/analytics/views"},
		{"/internal/jobs/daily_rollup", "/internal/jobs/daily_rollup"},
		{"/internal/tips/t1/payment", "/internal/tips/{id}/payment"},
		{"/wp-login.php", otherRoute},
		{"/", otherRoute},
	}
	for _, tt := range tests {
		if got := routeLabel(tt.path); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHTTPMetrics_RecordsByRouteAndClass(t *testing.T) {
	m := NewMetrics()
	h := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"c1"}`))
	}))

	for _, p := range []string{"/v1/videos/a/comments", "/v1/videos/b/comments", "/v1/videos/c/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, p, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/v1/videos/{id}/comments", "2xx")); got != 2 {
		t.Errorf("2xx comments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "/v1/videos/{id}/missing", "4xx")); got != 1 {
		t.Errorf("4xx = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("in-flight after completion = %v, want 0", got)
	}
}

func TestHTTPMetrics_SkipsProbesAndScrapes(t *testing.T) {
	m := NewMetrics()
	h := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, p := range []string{"/health", "/ready", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	if got := testutil.CollectAndCount(m.requests); got != 0 {
		t.Errorf("series recorded for probes = %d, want 0", got)
	}
}

func TestHTTPMetrics_InFlightDuringRequest(t *testing.T) {
	m := NewMetrics()
	var during float64
	h := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(m.inFlight)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/notifications", nil))
	if during != 1 {
		t.Errorf("in-flight while serving = %v, want 1", during)
	}
}

func TestStatusRecorder(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	_, _ = rec.Write([]byte("hello "))
	rec.WriteHeader(http.StatusTeapot)
	_, _ = rec.Write([]byte("world"))

	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want 200 (implicit header already sent)", rec.status)
	}
	if rec.written != 11 {
		t.Errorf("written = %d, want 11", rec.written)
	}
}
