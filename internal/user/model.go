// Package user manages creator and viewer profiles and their denormalized counters.
package user

import "time"

// Settings holds the per-user privacy and monetization switches.
type Settings struct {
	IsPrivate     bool `json:"is_private"`
	AllowMessages bool `json:"allow_messages"`
	AllowComments bool `json:"allow_comments"`
	AllowTips     bool `json:"allow_tips"`
}

// DefaultSettings returns the settings assigned to new profiles.
// Tips are opt-in.
func DefaultSettings() Settings {
	return Settings{
		AllowMessages: true,
		AllowComments: true,
	}
}

// User is a platform profile. ID equals the subject of the caller's access token.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name"`
	Bio            string    `json:"bio,omitempty"`
	ProfileImage   string    `json:"profile_image,omitempty"`
	Verified       bool      `json:"verified"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	VideoCount     int64     `json:"video_count"`
	Settings       Settings  `json:"settings"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
