package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/reelcast/internal/jobs"
)

type fakeRunner struct {
	got string
	err error
}

func (f *fakeRunner) RunNow(_ context.Context, name string) error {
	f.got = name
	return f.err
}

func TestJobHandlers_Run(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"success", nil, http.StatusOK, ""},
		{"unknown", fmt.Errorf("%w: x", jobs.ErrUnknownJob), http.StatusNotFound, ErrCodeNotFound},
		{"busy", jobs.ErrAlreadyRunning, http.StatusConflict, ErrCodeInvalidState},
		{"failed", errors.New("daily_rollup: list users: boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			mux := http.NewServeMux()
			mux.HandleFunc("POST /internal/jobs/{name}", NewJobHandlers(runner).Run)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/jobs/daily-rollup", nil))

			if runner.got != jobs.JobTypeDailyRollup {
				t.Errorf("runner got %q, want %q", runner.got, jobs.JobTypeDailyRollup)
			}
			if tt.wantCode == "" {
				expectStatus(t, w, tt.wantStatus)
				return
			}
			expectErrorCode(t, w, tt.wantStatus, tt.wantCode)
		})
	}
}
