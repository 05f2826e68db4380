// Package schedule manages deferred video publishing. A post leaves the
// scheduled state exactly once, to published, cancelled or failed.
package schedule

import "time"

// Status is the lifecycle state of a scheduled post.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusCancelled || s == StatusFailed
}

// MaxPending is the number of posts a user may have in the scheduled state.
const MaxPending = 10

// Post is a video waiting to be published at ScheduledFor.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	VideoData     string    `json:"video_data"` // storage reference of the uploaded blob
	ThumbnailURL  string    `json:"thumbnail_url"`
	Duration      float64   `json:"duration"`
	Description   string    `json:"description,omitempty"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	Status        Status    `json:"status"`
	VideoID       string    `json:"video_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
