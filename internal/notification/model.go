// Package notification stores per-user notifications. Each notification type
// carries its own typed payload.
package notification

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of notification and selects its payload shape.
type Type string

const (
	TypeFollow     Type = "follow"
	TypeLike       Type = "like"
	TypeComment    Type = "comment"
	TypeVideoReady Type = "video_ready"
	TypeSystem     Type = "system"
)

// Payload is implemented by the typed payload of each notification type.
type Payload interface {
	Type() Type
	title() string
	message() string
}

// FollowPayload is sent to a user who gained a follower.
type FollowPayload struct {
	FollowerID   string `json:"follower_id"`
	FollowerName string `json:"follower_name"`
}

func (FollowPayload) Type() Type        { return TypeFollow }
func (FollowPayload) title() string     { return "New follower" }
func (p FollowPayload) message() string { return p.FollowerName + " started following you" }

// LikePayload is sent to a video owner when someone likes their video.
type LikePayload struct {
	VideoID   string `json:"video_id"`
	LikerID   string `json:"liker_id"`
	LikerName string `json:"liker_name"`
}

func (LikePayload) Type() Type        { return TypeLike }
func (LikePayload) title() string     { return "New like" }
func (p LikePayload) message() string { return p.LikerName + " liked your video" }

// CommentPayload is sent to a video owner when someone comments.
type CommentPayload struct {
	VideoID    string `json:"video_id"`
	CommentID  string `json:"comment_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
}

func (CommentPayload) Type() Type        { return TypeComment }
func (CommentPayload) title() string     { return "New comment" }
func (p CommentPayload) message() string { return p.AuthorName + " commented on your video" }

// VideoReadyPayload is sent when a scheduled post has been published.
type VideoReadyPayload struct {
	VideoID         string `json:"video_id"`
	ScheduledPostID string `json:"scheduled_post_id,omitempty"`
}

func (VideoReadyPayload) Type() Type      { return TypeVideoReady }
func (VideoReadyPayload) title() string   { return "Your video is live" }
func (VideoReadyPayload) message() string { return "Your scheduled video has been published" }

// SystemPayload carries a free-form platform message.
type SystemPayload struct {
	Text string `json:"text"`
}

func (SystemPayload) Type() Type        { return TypeSystem }
func (SystemPayload) title() string     { return "Announcement" }
func (p SystemPayload) message() string { return p.Text }

// DecodePayload decodes raw JSON into the payload type selected by t.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	var p Payload
	switch t {
	case TypeFollow:
		var v FollowPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeLike:
		var v LikePayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeComment:
		var v CommentPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeVideoReady:
		var v VideoReadyPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeSystem:
		var v SystemPayload
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown notification type %q", t)
	}
	return p, nil
}

// Notification is one message delivered to a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Payload   Payload   `json:"payload"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationJSON struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalJSON decodes the payload according to the type field.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var aux notificationJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := DecodePayload(aux.Type, aux.Payload)
	if err != nil {
		return err
	}
	*n = Notification{
		ID:        aux.ID,
		UserID:    aux.UserID,
		Type:      aux.Type,
		Title:     aux.Title,
		Message:   aux.Message,
		Payload:   p,
		Read:      aux.Read,
		CreatedAt: aux.CreatedAt,
	}
	return nil
}
