// Package analytics records creator engagement events and aggregates them
// into dashboards, trends, best-time-to-post recommendations and daily rollups.
package analytics

import "time"

// EventType is the kind of an analytics event.
type EventType string

const (
	EventView      EventType = "view"
	EventLike      EventType = "like"
	EventComment   EventType = "comment"
	EventShare     EventType = "share"
	EventTip       EventType = "tip"
	EventWatchTime EventType = "watch_time"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventLike, EventComment, EventShare, EventTip, EventWatchTime:
		return true
	}
	return false
}

// IsEngagement reports whether t counts toward engagement rate (likes, comments, shares).
func (t EventType) IsEngagement() bool {
	return t == EventLike || t == EventComment || t == EventShare
}

// Demographics is optional viewer-supplied audience data.
type Demographics struct {
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	AgeRange   string `json:"age_range,omitempty"`
}

// Event is an append-only analytics fact. UserID is the creator who owns the
// video. Hour and DayOfWeek are fixed at write time.
type Event struct {
	ID            string        `json:"id"`
	VideoID       string        `json:"video_id"`
	UserID        string        `json:"user_id"`
	EventType     EventType     `json:"event_type"`
	ViewerID      string        `json:"viewer_id,omitempty"`
	Demographics  *Demographics `json:"demographics,omitempty"`
	WatchDuration *float64      `json:"watch_duration,omitempty"`
	Amount        int64         `json:"amount,omitempty"` // tip cents
	Timestamp     time.Time     `json:"timestamp"`
	Hour          int           `json:"hour"`
	DayOfWeek     int           `json:"day_of_week"` // 0 = Sunday
}

// CreatorStats is one daily rollup row per (UserID, Date).
type CreatorStats struct {
	UserID            string    `json:"user_id"`
	Date              string    `json:"date"` // YYYY-MM-DD
	TotalViews        int64     `json:"total_views"`
	TotalLikes        int64     `json:"total_likes"`
	TotalComments     int64     `json:"total_comments"`
	TotalShares       int64     `json:"total_shares"`
	TotalTips         int64     `json:"total_tips"`
	TotalWatchTime    float64   `json:"total_watch_time"`
	UniqueViewers     int64     `json:"unique_viewers"`
	NewFollowers      int64     `json:"new_followers"`
	AvgEngagementRate float64   `json:"avg_engagement_rate"`
	TopVideoID        string    `json:"top_performing_video_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PostPerformance is the best-time cache for one (hour, day-of-week) bucket.
// AvgViews and AvgEngagement are running averages over SampleCount rolled-up days.
type PostPerformance struct {
	UserID        string    `json:"user_id"`
	Hour          int       `json:"hour"`
	DayOfWeek     int       `json:"day_of_week"`
	AvgViews      float64   `json:"avg_views"`
	AvgEngagement float64   `json:"avg_engagement"`
	SampleCount   int64     `json:"sample_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EngagementRate returns engagements/views*100, or 0 when views is 0.
func EngagementRate(engagements, views int64) float64 {
	if views == 0 {
		return 0
	}
	return float64(engagements) / float64(views) * 100
}

// DateKey formats t as the YYYY-MM-DD key used by CreatorStats.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
