package payment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInMemoryEventLog_Lifecycle(t *testing.T) {
	ctx := context.Background()
	log := NewInMemoryEventLog()
	fixed := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	if err := log.Claim(ctx, "evt_1", "payment_intent.succeeded"); err != nil {
		t.Fatal(err)
	}
	ev, err := log.Get(ctx, "evt_1")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Outcome != OutcomePending || ev.ResolvedAt != nil || !ev.ReceivedAt.Equal(fixed) {
		t.Errorf("claimed event = %+v", ev)
	}

	if err := log.Resolve(ctx, "evt_1", "tip-1", OutcomeSettled); err != nil {
		t.Fatal(err)
	}
	ev, _ = log.Get(ctx, "evt_1")
	if ev.Outcome != OutcomeSettled || ev.TipID != "tip-1" || ev.ResolvedAt == nil {
		t.Errorf("resolved event = %+v", ev)
	}

	// Resolved events survive Release; a redelivery stays a duplicate.
	if err := log.Release(ctx, "evt_1"); err != nil {
		t.Fatal(err)
	}
	if err := log.Claim(ctx, "evt_1", "payment_intent.succeeded"); !errors.Is(err, ErrEventAlreadyProcessed) {
		t.Errorf("redelivery err = %v, want ErrEventAlreadyProcessed", err)
	}
}

func TestInMemoryEventLog_ReleasePendingAllowsRetry(t *testing.T) {
	ctx := context.Background()
	log := NewInMemoryEventLog()

	_ = log.Claim(ctx, "evt_2", "payment_intent.payment_failed")
	if err := log.Release(ctx, "evt_2"); err != nil {
		t.Fatal(err)
	}
	if _, err := log.Get(ctx, "evt_2"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get after release err = %v", err)
	}
	if err := log.Claim(ctx, "evt_2", "payment_intent.payment_failed"); err != nil {
		t.Errorf("retry claim err = %v", err)
	}
}

func TestInMemoryEventLog_UnknownEvent(t *testing.T) {
	ctx := context.Background()
	log := NewInMemoryEventLog()
	if err := log.Resolve(ctx, "evt_none", "", OutcomeIgnored); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Resolve err = %v", err)
	}
	if err := log.Release(ctx, "evt_none"); err != nil {
		t.Errorf("Release of unknown event should be a no-op, got %v", err)
	}
}

// Exactly one of many concurrent deliveries of the same event wins.
func TestInMemoryEventLog_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	log := NewInMemoryEventLog()

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if log.Claim(ctx, "evt_race", "payment_intent.succeeded") == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	if won.Load() != 1 {
		t.Errorf("winning claims = %d, want 1", won.Load())
	}
}
