package stats

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
)

func TestBatch_RecordUpsert(t *testing.T) {
	b := NewBatch()

	b.RecordUpsert(true)
	b.RecordUpsert(true)
	b.RecordUpsert(false)
	b.RecordFailure()

	if b.Inserted() != 2 {
		t.Errorf("Expected 2 inserts, got %d", b.Inserted())
	}
	if b.Updated() != 1 {
		t.Errorf("Expected 1 update, got %d", b.Updated())
	}
	if b.Failed() != 1 {
		t.Errorf("Expected 1 failure, got %d", b.Failed())
	}
	if b.Succeeded() != 3 {
		t.Errorf("Expected 3 successes, got %d", b.Succeeded())
	}

	expected := "inserted=2 updated=1 failed=1"
	if b.String() != expected {
		t.Errorf("Expected %q, got %q", expected, b.String())
	}
}

func TestBatch_Concurrent(t *testing.T) {
	b := NewBatch()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			b.RecordUpsert(true)
		}()
		go func() {
			defer wg.Done()
			b.RecordUpsert(false)
		}()
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	if b.Inserted() != 100 || b.Updated() != 100 || b.Failed() != 100 {
		t.Errorf("unexpected tallies: %s", b)
	}
}

func TestBatch_LogSummary(t *testing.T) {
	b := NewBatch()
	b.RecordUpsert(true)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{}))
	b.LogSummary(context.Background(), logger, "daily_rollup")

	for _, field := range []string{"batch=daily_rollup", "inserted=1", "updated=0", "failed=0"} {
		if !bytes.Contains(buf.Bytes(), []byte(field)) {
			t.Errorf("Expected log to contain %q, got %s", field, buf.String())
		}
	}
}
