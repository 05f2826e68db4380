package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/onnwee/reelcast/internal/authz"
)

// BestTimeCount is the number of recommended slots returned.
const BestTimeCount = 3

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayName returns the English weekday name for 0 (Sunday) through 6.
func DayName(dow int) string {
	if dow < 0 || dow > 6 {
		return ""
	}
	return dayNames[dow]
}

// TimeString renders an hour of day as "12 AM", "3 PM" and so on.
func TimeString(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour == 12:
		return "12 PM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

// TimeSlot is one (hour, day-of-week) bucket.
type TimeSlot struct {
	Hour          int     `json:"hour"`
	DayOfWeek     int     `json:"day_of_week"`
	AvgViews      float64 `json:"avg_views"`
	AvgEngagement float64 `json:"avg_engagement"`
	DayName       string  `json:"day_name"`
	TimeString    string  `json:"time_string"`
}

// Heatmap holds engagement per [dayOfWeek][hour].
type Heatmap [7][24]float64

// BestTimes is the result of BestTimeToPost.
type BestTimes struct {
	BestTimes []TimeSlot `json:"best_times"`
	Heatmap   Heatmap    `json:"heatmap"`
	// Source is "cache" when read from post performance rows, else "events".
	Source string `json:"source"`
}

func newSlot(hour, dow int, views, engagement float64) TimeSlot {
	return TimeSlot{
		Hour:          hour,
		DayOfWeek:     dow,
		AvgViews:      views,
		AvgEngagement: engagement,
		DayName:       DayName(dow),
		TimeString:    TimeString(hour),
	}
}

// BestTimeToPost ranks (hour, day-of-week) buckets by engagement. The post
// performance cache is used when present; otherwise all raw events are bucketed.
func (s *Service) BestTimeToPost(ctx context.Context, caller authz.Caller, userID string) (*BestTimes, error) {
	if err := s.authorizeOwner(ctx, caller, userID); err != nil {
		return nil, err
	}

	cached, err := s.store.ListPostPerformance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		slots := make([]TimeSlot, 0, len(cached))
		for _, p := range cached {
			slots = append(slots, newSlot(p.Hour, p.DayOfWeek, p.AvgViews, p.AvgEngagement))
		}
		return rankSlots(slots, "cache"), nil
	}

	events, err := s.store.ListEvents(ctx, EventQuery{UserID: userID})
	if err != nil {
		return nil, err
	}
	return rankSlots(BucketEvents(events), "events"), nil
}

// BucketEvents groups events by (hour, day-of-week) in first-seen order.
// Views count as views and every other event type as an engagement.
func BucketEvents(events []*Event) []TimeSlot {
	type counts struct{ views, engagements int64 }
	type key struct{ hour, dow int }

	var order []key
	buckets := make(map[key]*counts)
	for _, e := range events {
		k := key{e.Hour, e.DayOfWeek}
		c, ok := buckets[k]
		if !ok {
			c = &counts{}
			buckets[k] = c
			order = append(order, k)
		}
		if e.EventType == EventView {
			c.views++
		} else {
			c.engagements++
		}
	}

	slots := make([]TimeSlot, 0, len(order))
	for _, k := range order {
		c := buckets[k]
		slots = append(slots, newSlot(k.hour, k.dow, float64(c.views), EngagementRate(c.engagements, c.views)))
	}
	return slots
}

// rankSlots fills the heatmap and keeps the top slots by engagement. Ties
// keep input order.
func rankSlots(slots []TimeSlot, source string) *BestTimes {
	out := &BestTimes{Source: source, BestTimes: []TimeSlot{}}
	for _, s := range slots {
		if s.DayOfWeek >= 0 && s.DayOfWeek < 7 && s.Hour >= 0 && s.Hour < 24 {
			out.Heatmap[s.DayOfWeek][s.Hour] = s.AvgEngagement
		}
	}

	sorted := append([]TimeSlot(nil), slots...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AvgEngagement > sorted[j].AvgEngagement
	})
	if len(sorted) > BestTimeCount {
		sorted = sorted[:BestTimeCount]
	}
	out.BestTimes = append(out.BestTimes, sorted...)
	return out
}
