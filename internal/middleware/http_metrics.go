package middleware

import (
	"net/http"
	"strings"
	"time"
)

// otherRoute labels requests outside the served prefixes, which are mostly
// scanners probing random paths.
const otherRoute = "other"

// idCollections are path segments followed by a resource identifier.
var idCollections = map[string]bool{
	"creators":        true,
	"users":           true,
	"videos":          true,
	"scheduled-posts": true,
	"comments":        true,
	"notifications":   true,
	"tips":            true,
	"usernames":       true,
	"jobs":            true,
}

// literalSegments may follow a collection without being an identifier.
var literalSegments = map[string]bool{
	"sent":     true,
	"received": true,
	"stats":    true,
	"search":   true,
	"feed":     true,
	"me":       true,
}

// unmeasured paths are probes and scrapes.
var unmeasured = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// routeLabel maps a request path to a bounded label: /v1/videos/abc/likes
// becomes /v1/videos/{id}/likes. Job names under /internal/jobs stay
// literal since the set is fixed.
func routeLabel(path string) string {
	if !strings.HasPrefix(path, "/v1/") && !strings.HasPrefix(path, "/internal/") {
		return otherRoute
	}
	parts := strings.Split(path, "/")
	for i := 2; i < len(parts); i++ {
		seg, parent := parts[i], parts[i-1]
		if seg == "" || literalSegments[seg] || !idCollections[parent] {
			continue
		}
		if parent == "jobs" && parts[1] == "internal" {
			continue
		}
		parts[i] = "{id}"
	}
	return strings.Join(parts, "/")
}

// statusRecorder remembers the first status code and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
	sent    bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.sent {
		return
	}
	s.status, s.sent = code, true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.sent = true
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// HTTPMetrics records request count, latency, response size and the
// in-flight gauge for every route except probes and the scrape endpoint.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unmeasured[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			metrics.trackInFlight(1)
			defer metrics.trackInFlight(-1)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			metrics.observeRequest(r.Method, routeLabel(r.URL.Path), rec.status, time.Since(start).Seconds(), rec.written)
		})
	}
}
