package middleware

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RegisterExposesNamespacedNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Error("registering a second set on the same registry should fail")
	}

	// Vectors only appear in Gather once a child exists.
	m.observeRequest("GET", "/v1/tips/sent", 200, 0.01, 42)
	m.recordLimitDecision(PolicyTip, "user", false)
	m.recordLimitStoreError(PolicyTip)
	m.recordReplay("POST /v1/tips")
	m.recordIdempotencyError("POST /v1/tips", "put")

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, mf := range families {
		got[mf.GetName()] = true
		if !strings.HasPrefix(mf.GetName(), MetricsNamespace+"_") {
			t.Errorf("metric %s lacks the %s namespace", mf.GetName(), MetricsNamespace)
		}
	}
	for _, name := range []string{
		MetricHTTPRequestsTotal, MetricHTTPRequestDuration, MetricHTTPResponseSizeBytes, MetricHTTPInFlight,
		MetricRateLimitDecisions, MetricRateLimitStoreErrors, MetricIdempotencyReplays, MetricIdempotencyStoreFailures,
	} {
		if !got[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.observeRequest("GET", "/v1/videos/feed", 200, 0.1, 10)
	m.trackInFlight(1)
	m.recordLimitDecision(PolicyGlobal, "ip", true)
	m.recordLimitStoreError(PolicyGlobal)
	m.recordReplay("POST /v1/tips")
	m.recordIdempotencyError("POST /v1/tips", "get")
}

func TestMetrics_LimitDecisionOutcomes(t *testing.T) {
	m := NewMetrics()
	m.recordLimitDecision(PolicyTracking, "ip", true)
	m.recordLimitDecision(PolicyTracking, "ip", true)
	m.recordLimitDecision(PolicyTracking, "ip", false)

	if got := testutil.ToFloat64(m.limitDecisions.WithLabelValues(PolicyTracking, "ip", OutcomeAllowed)); got != 2 {
		t.Errorf("allowed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.limitDecisions.WithLabelValues(PolicyTracking, "ip", OutcomeBlocked)); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		201: "2xx",
		304: "3xx",
		429: "4xx",
		503: "5xx",
		0:   "unknown",
		700: "unknown",
	}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
