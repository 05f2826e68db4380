package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func TestTracing_SpanNamesUseRouteLabels(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/v1/analytics/views", "POST /v1/analytics/views"},
		{http.MethodGet, "/v1/creators/u1/best-times", "GET /v1/creators/{id}/best-times"},
		{http.MethodPatch, "/v1/scheduled-posts/p1", "PATCH /v1/scheduled-posts/{id}"},
		{http.MethodPost, "/internal/jobs/publish_scheduled", "POST /internal/jobs/publish_scheduled"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := installRecorder(t)
			h := Tracing("reelcast-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			if spans[0].Name() != tt.want {
				t.Errorf("span name = %q, want %q", spans[0].Name(), tt.want)
			}
		})
	}
}

func TestTracing_SkipsProbes(t *testing.T) {
	rec := installRecorder(t)
	h := Tracing("reelcast-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, p := range []string{"/health", "/ready", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	if n := len(rec.Ended()); n != 0 {
		t.Errorf("probe spans = %d, want 0", n)
	}
}

// The full front of the chain tags the span with the request id and the
// authenticated user, and the handler sees the same trace id.
func TestTracing_TagsRequestAndUser(t *testing.T) {
	rec := installRecorder(t)
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	})
	h := RequestID(Tracing("reelcast-test")(Authenticate(fakeValidator{"tok": "creator-1"})(inner)))

	r := httptest.NewRequest(http.MethodGet, "/v1/creators/creator-1/analytics", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	r.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), r)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if seen == "" || seen != span.SpanContext().TraceID().String() {
		t.Errorf("handler trace id = %q, span trace id = %s", seen, span.SpanContext().TraceID())
	}
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(attrRequestID)] != "req-42" {
		t.Errorf("request id attribute = %q", attrs[string(attrRequestID)])
	}
	if attrs[string(attrUserID)] != "creator-1" {
		t.Errorf("user attribute = %q", attrs[string(attrUserID)])
	}
}

func TestTraceID_OutsideSpan(t *testing.T) {
	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID() = %q, want empty", id)
	}
}
