// Package video stores short videos, their raw view records and denormalized counters.
package video

import "time"

// Status is the processing status of a video.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Device describes where a video was recorded.
type Device struct {
	DeviceType string     `json:"device_type,omitempty"`
	AppVersion string     `json:"app_version,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// Video is a published short video. Deletion is soft.
type Video struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	VideoURL     string  `json:"video_url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"` // seconds
	Description  string  `json:"description,omitempty"`

	ViewCount    int64 `json:"view_count"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
	TipCount     int64 `json:"tip_count"`

	IsDeleted bool   `json:"-"`
	Status    Status `json:"status"`
	Device    Device `json:"device"`

	// ScheduledPostID and ScheduledAt are set when the video was
	// materialized from a scheduled post.
	ScheduledPostID string     `json:"scheduled_post_id,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View is one raw view record. SessionID is stored for duplicate analysis but
// never enforced as unique.
type View struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video_id"`
	UserID    string    `json:"user_id,omitempty"`
	WatchTime float64   `json:"watch_time"`
	Completed bool      `json:"completed"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionThreshold is the fraction of a video that counts as a completed view.
const CompletionThreshold = 0.8

// IsCompleted reports whether watchTime covers CompletionThreshold of duration.
func IsCompleted(watchTime, duration float64) bool {
	if duration <= 0 {
		return false
	}
	return watchTime >= duration*CompletionThreshold
}
