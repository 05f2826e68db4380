package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/onnwee/reelcast/internal/config"
	"github.com/onnwee/reelcast/internal/jobs"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		JWTSecret:         "test-secret-with-enough-entropy!",
		AnalyticsTimezone: "UTC",
		GuidelinesVersion: "1.0",
		PublishInterval:   time.Hour,
		RollupInterval:    time.Hour,
		ReconcileInterval: time.Hour,
		TracingExporter:   config.DefaultTracingExporter,
		RateLimitGlobal:   100,
		RateLimitTracking: 100,
		RateLimitTip:      10,
	}
}

func TestRun_Once(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name    string
		job     string
		wantErr error
	}{
		{"publish sweep", "publish-scheduled", nil},
		{"rollup by canonical name", jobs.JobTypeDailyRollup, nil},
		{"reconcile", "counter-reconcile", nil},
		{"unknown", "reindex", jobs.ErrUnknownJob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), testConfig(), logger, tt.job)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("run(%q) = %v, want %v", tt.job, err, tt.wantErr)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(), logger, "") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}
