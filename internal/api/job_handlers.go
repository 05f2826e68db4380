package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/reelcast/internal/jobs"
)

// JobRunner runs a named background job once.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// JobHandlers exposes on-demand background job runs.
type JobHandlers struct {
	runner JobRunner
}

// NewJobHandlers creates a new JobHandlers instance.
func NewJobHandlers(runner JobRunner) *JobHandlers {
	return &JobHandlers{runner: runner}
}

// Run handles POST /internal/jobs/{name}. Route names use hyphens
// (daily-rollup) for the underscore job names (daily_rollup).
func (h *JobHandlers) Run(w http.ResponseWriter, r *http.Request) {
	name := strings.ReplaceAll(r.PathValue("name"), "-", "_")
	err := h.runner.RunNow(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, map[string]string{"job": name, "status": jobs.StatusSuccess})
	case errors.Is(err, jobs.ErrUnknownJob):
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "unknown job")
	case errors.Is(err, jobs.ErrAlreadyRunning):
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeInvalidState, "job already running")
	default:
		WriteAppError(w, r, err)
	}
}
