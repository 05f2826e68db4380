package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/reelcast/internal/health"
)

const readinessTimeout = 5 * time.Second

// HealthHandlers provides liveness and readiness endpoints.
type HealthHandlers struct {
	checkers map[string]health.Checker
	now      func() time.Time
}

// NewHealthHandlers creates health handlers over the named dependency checkers.
// A nil or empty map makes /ready always healthy.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	return &HealthHandlers{checkers: checkers, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe). It returns 503 when any
// dependency check fails.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	status, code := "healthy", http.StatusOK
	for _, res := range health.Run(ctx, h.checkers) {
		if res.Err != nil {
			slog.WarnContext(ctx, "health check failed", "check", res.Name, "error", res.Err)
			checks[res.Name] = "error"
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		checks[res.Name] = "ok"
	}
	writeJSON(w, r, code, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
