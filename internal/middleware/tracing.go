package middleware

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys set by this package.
const (
	attrRequestID = attribute.Key("reelcast.request_id")
	attrUserID    = attribute.Key("enduser.id")
)

// Tracing opens a server span per request using the global tracer provider
// and propagator. Spans are named "<METHOD> <route label>" and carry the
// request id; Authenticate later adds the user. Probes and scrapes are not
// traced.
func Tracing(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := GetRequestID(r.Context()); id != "" {
				trace.SpanFromContext(r.Context()).SetAttributes(attrRequestID.String(id))
			}
			next.ServeHTTP(w, r)
		})
		return otelhttp.NewHandler(tagged, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + routeLabel(r.URL.Path)
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !unmeasured[r.URL.Path]
			}),
		)
	}
}

// tagSpanUser records the authenticated user on the active span, if any.
func tagSpanUser(ctx context.Context, userID string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrUserID.String(userID))
	}
}

// TraceID returns the active trace id in hex, or "" outside a sampled span.
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
