package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
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

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		table     string
		operation DBOperation
		wantName  string
	}{
		{"scheduled_posts", DBOperationUpdate, "update scheduled_posts"},
		{"analytics_events", DBOperationInsert, "insert analytics_events"},
		{"tips", DBOperationQuery, "query tips"},
		{"", DBOperationExec, "exec"},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			rec := recorder(t)
			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			s := spans[0]
			if s.Name() != tt.wantName {
				t.Errorf("name = %q, want %q", s.Name(), tt.wantName)
			}
			attrs := attrMap(s.Attributes())
			if attrs["db.system"] != "postgresql" || attrs["db.operation"] != string(tt.operation) {
				t.Errorf("unexpected attributes %v", attrs)
			}
			if _, ok := attrs["db.sql.table"]; ok != (tt.table != "") {
				t.Errorf("db.sql.table presence mismatch: %v", attrs)
			}
		})
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	rec := recorder(t)
	ctx, end := StartSpan(context.Background(), "job publish_scheduled", attribute.String("job", "publish_scheduled"))
	SetAttributes(ctx, attribute.Int("published", 3))
	AddEvent(ctx, "post_failed", attribute.String("post_id", "p1"))
	end(errors.New("boom"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Status().Code != codes.Error || s.Status().Description != "boom" {
		t.Errorf("status = %+v", s.Status())
	}
	attrs := attrMap(s.Attributes())
	if attrs["job"] != "publish_scheduled" || attrs["published"] != "3" {
		t.Errorf("attributes = %v", attrs)
	}
	var names []string
	for _, e := range s.Events() {
		names = append(names, e.Name)
	}
	if len(names) != 2 || names[0] != "post_failed" || names[1] != "exception" {
		t.Errorf("events = %v", names)
	}
}

func TestStartSpan_Nested(t *testing.T) {
	rec := recorder(t)
	ctx, endOuter := StartSpan(context.Background(), "tip.process_payment")
	_, endDB := StartDBSpan(ctx, "tips", DBOperationUpdate)
	endDB(nil)
	endOuter(nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	db, outer := spans[0], spans[1]
	if db.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Error("db span should be a child of the service span")
	}
	if db.SpanContext().TraceID() != outer.SpanContext().TraceID() {
		t.Error("spans should share a trace")
	}
}
