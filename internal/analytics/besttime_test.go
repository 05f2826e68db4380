package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/reelcast/internal/authz"
)

func TestTimeStringAndDayName(t *testing.T) {
	cases := map[int]string{0: "12 AM", 1: "1 AM", 11: "11 AM", 12: "12 PM", 13: "1 PM", 23: "11 PM"}
	for hour, want := range cases {
		if got := TimeString(hour); got != want {
			t.Errorf("TimeString(%d) = %q, want %q", hour, got, want)
		}
	}
	if DayName(0) != "Sunday" || DayName(6) != "Saturday" || DayName(7) != "" {
		t.Error("unexpected day names")
	}
}

func TestBestTimeToPost_FromEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Sunday 09:00 : 2 views, 1 like  -> 50%
	// Monday 18:00 : 1 view, 1 share  -> 100%
	// Friday 12:00 : 1 like, 0 views  -> 0%
	sunday := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	friday := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventView, Timestamp: sunday})
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventView, Timestamp: sunday})
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventLike, Timestamp: sunday})
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventView, Timestamp: monday})
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventShare, Timestamp: monday})
	f.seedEvent(t, &Event{UserID: "bob", EventType: EventLike, Timestamp: friday})

	bt, err := f.svc.BestTimeToPost(ctx, authz.User("bob"), "bob")
	if err != nil {
		t.Fatalf("BestTimeToPost failed: %v", err)
	}
	if bt.Source != "events" {
		t.Errorf("expected events source, got %s", bt.Source)
	}
	if len(bt.BestTimes) != 3 {
		t.Fatalf("expected 3 best times, got %d", len(bt.BestTimes))
	}
	first := bt.BestTimes[0]
	if first.DayOfWeek != 1 || first.Hour != 18 || first.AvgEngagement != 100 {
		t.Errorf("expected Monday 18:00 at 100%%, got %+v", first)
	}
	if first.DayName != "Monday" || first.TimeString != "6 PM" {
		t.Errorf("unexpected labels %q %q", first.DayName, first.TimeString)
	}
	if bt.BestTimes[1].AvgEngagement != 50 || bt.BestTimes[2].AvgEngagement != 0 {
		t.Errorf("unexpected ranking %+v", bt.BestTimes)
	}

	if len(bt.Heatmap) != 7 || len(bt.Heatmap[0]) != 24 {
		t.Fatal("heatmap must be 7x24")
	}
	if bt.Heatmap[0][9] != 50 || bt.Heatmap[1][18] != 100 || bt.Heatmap[3][3] != 0 {
		t.Errorf("unexpected heatmap cells")
	}
}

func TestBestTimeToPost_TiesKeepFirstSeen(t *testing.T) {
	events := []*Event{
		{EventType: EventView, Hour: 5, DayOfWeek: 2},
		{EventType: EventView, Hour: 7, DayOfWeek: 2},
		{EventType: EventView, Hour: 1, DayOfWeek: 2},
		{EventType: EventView, Hour: 3, DayOfWeek: 2},
	}
	bt := rankSlots(BucketEvents(events), "events")
	if len(bt.BestTimes) != 3 {
		t.Fatalf("expected 3, got %d", len(bt.BestTimes))
	}
	for i, want := range []int{5, 7, 1} {
		if bt.BestTimes[i].Hour != want {
			t.Errorf("position %d: expected hour %d, got %d", i, want, bt.BestTimes[i].Hour)
		}
	}
}

func TestBestTimeToPost_PrefersCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.seedEvent(t, &Event{UserID: "bob", EventType: EventView, Timestamp: fixedNow})
	f.store.mu.Lock()
	f.store.putPerformance(PostPerformance{UserID: "bob", Hour: 20, DayOfWeek: 5, AvgViews: 3, AvgEngagement: 42, SampleCount: 2})
	f.store.putPerformance(PostPerformance{UserID: "bob", Hour: 8, DayOfWeek: 6, AvgViews: 1, AvgEngagement: 7, SampleCount: 1})
	f.store.mu.Unlock()

	bt, err := f.svc.BestTimeToPost(ctx, authz.User("bob"), "bob")
	if err != nil {
		t.Fatalf("BestTimeToPost failed: %v", err)
	}
	if bt.Source != "cache" {
		t.Errorf("expected cache source, got %s", bt.Source)
	}
	if len(bt.BestTimes) != 2 || bt.BestTimes[0].AvgEngagement != 42 {
		t.Errorf("unexpected best times %+v", bt.BestTimes)
	}
	if bt.Heatmap[5][20] != 42 {
		t.Errorf("expected cached value in heatmap, got %v", bt.Heatmap[5][20])
	}
}

func TestBestTimeToPost_Empty(t *testing.T) {
	f := newFixture(t)
	bt, err := f.svc.BestTimeToPost(context.Background(), authz.User("alice"), "alice")
	if err != nil {
		t.Fatalf("BestTimeToPost failed: %v", err)
	}
	if len(bt.BestTimes) != 0 {
		t.Errorf("expected no best times, got %d", len(bt.BestTimes))
	}
	for d := range bt.Heatmap {
		for h := range bt.Heatmap[d] {
			if bt.Heatmap[d][h] != 0 {
				t.Fatal("expected zero-filled heatmap")
			}
		}
	}
}
