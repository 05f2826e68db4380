package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/validate"
)

// Page sizes.
const (
	DefaultFeedLimit      = 10
	DefaultUserVideoLimit = 12
	MaxPageLimit          = 50
)

// MaxDurationSeconds is the longest accepted video.
const MaxDurationSeconds = 180

// FeedType selects the feed source.
type FeedType string

const (
	FeedFollowing FeedType = "following"
	FeedDiscover  FeedType = "discover"
)

// FollowingLister returns the ids of users a user follows.
type FollowingLister interface {
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
}

// UploadInput describes a new video.
type UploadInput struct {
	VideoURL     string
	ThumbnailURL string
	Duration     float64
	Description  string
	Device       Device
}

// Author is the public profile summary attached to feed items.
type Author struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image,omitempty"`
	Verified     bool   `json:"verified"`
}

// FeedItem is a video with its author.
type FeedItem struct {
	*Video
	Author *Author `json:"author,omitempty"`
}

// Page is one page of a cursor-paginated video list. NextCursor is the
// CreatedAt of the last item in Unix milliseconds.
type Page struct {
	Items      []FeedItem `json:"items"`
	NextCursor int64      `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// Service implements video operations.
type Service struct {
	repo      Repository
	users     user.Repository
	following FollowingLister
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new video service. following may be nil, in which
// case the following feed is always empty.
func NewService(repo Repository, users user.Repository, following FollowingLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		users:     users,
		following: following,
		logger:    logger,
		now:       time.Now,
	}
}

// NewVideo validates in and builds a ready video owned by ownerID. It does not persist it.
func NewVideo(ownerID string, in UploadInput) (*Video, error) {
	videoURL, err := validate.MediaURL(in.VideoURL)
	if err != nil {
		return nil, apperr.Validation("invalid video url: %v", err)
	}
	thumbURL, err := validate.MediaURL(in.ThumbnailURL)
	if err != nil {
		return nil, apperr.Validation("invalid thumbnail url: %v", err)
	}
	if in.Duration <= 0 || in.Duration > MaxDurationSeconds {
		return nil, apperr.Validation("duration must be between 0 and %d seconds", MaxDurationSeconds)
	}
	desc, err := validate.Caption(in.Description)
	if err != nil {
		return nil, apperr.Validation("invalid description: %v", err)
	}
	return &Video{
		UserID:       ownerID,
		VideoURL:     videoURL,
		ThumbnailURL: thumbURL,
		Duration:     in.Duration,
		Description:  desc,
		Status:       StatusReady,
		Device:       in.Device,
	}, nil
}

// Upload stores a new video for the caller and increments their video count.
func (s *Service) Upload(ctx context.Context, caller authz.Caller, in UploadInput) (*Video, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, caller.UserID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, apperr.NotFound("user profile not found")
		}
		return nil, err
	}

	v, err := NewVideo(caller.UserID, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, v); err != nil {
		return nil, err
	}
	if err := user.AdjustCounter(ctx, s.users, caller.UserID, user.VideoCount, 1); err != nil {
		return nil, fmt.Errorf("increment video count: %w", err)
	}

	s.logger.InfoContext(ctx, "video uploaded", "video_id", v.ID, "user_id", caller.UserID)
	return v, nil
}

// Get returns a non-deleted video.
func (s *Service) Get(ctx context.Context, id string) (*Video, error) {
	v, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrVideoNotFound) || (err == nil && v.IsDeleted) {
		return nil, apperr.NotFound("video not found")
	}
	return v, err
}

// Delete soft-deletes a video owned by the caller.
func (s *Service) Delete(ctx context.Context, caller authz.Caller, id string) error {
	if err := caller.Require(); err != nil {
		return err
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.UserID != caller.UserID {
		return apperr.Unauthorized("only the owner can delete this video")
	}

	v.IsDeleted = true
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	if err := user.AdjustCounter(ctx, s.users, v.UserID, user.VideoCount, -1); err != nil {
		return fmt.Errorf("decrement video count: %w", err)
	}
	return nil
}

// RecordView counts a view. Anonymous callers only bump the counter;
// authenticated callers also leave a raw view record.
func (s *Service) RecordView(ctx context.Context, caller authz.Caller, videoID string, watchTime float64, sessionID string) error {
	if watchTime < 0 {
		return apperr.Validation("watch time cannot be negative")
	}
	v, err := s.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if err := AdjustCounter(ctx, s.repo, videoID, ViewCount, 1); err != nil {
		return err
	}
	if !caller.Authenticated() {
		return nil
	}

	now := s.now()
	if sessionID == "" {
		sessionID = fmt.Sprintf("%s-%d", caller.UserID, now.UnixMilli())
	}
	return s.repo.InsertView(ctx, &View{
		VideoID:   videoID,
		UserID:    caller.UserID,
		WatchTime: watchTime,
		Completed: IsCompleted(watchTime, v.Duration),
		SessionID: sessionID,
		CreatedAt: now,
	})
}

// Feed returns a page of the following or discover feed.
func (s *Service) Feed(ctx context.Context, caller authz.Caller, feed FeedType, cursor int64, limit int) (*Page, error) {
	q := ListQuery{Limit: clampLimit(limit, DefaultFeedLimit)}
	switch feed {
	case FeedDiscover, "":
	case FeedFollowing:
		if err := caller.Require(); err != nil {
			return nil, err
		}
		ids := []string{}
		if s.following != nil {
			var err error
			if ids, err = s.following.FollowingIDs(ctx, caller.UserID); err != nil {
				return nil, err
			}
			if ids == nil {
				ids = []string{}
			}
		}
		q.AuthorIDs = ids
	default:
		return nil, apperr.Validation("unknown feed type %q", feed)
	}
	return s.page(ctx, q, cursor)
}

// UserVideos returns a page of one user's videos.
func (s *Service) UserVideos(ctx context.Context, userID string, cursor int64, limit int) (*Page, error) {
	return s.page(ctx, ListQuery{
		AuthorIDs: []string{userID},
		Limit:     clampLimit(limit, DefaultUserVideoLimit),
	}, cursor)
}

func (s *Service) page(ctx context.Context, q ListQuery, cursor int64) (*Page, error) {
	if cursor > 0 {
		q.Before = time.UnixMilli(cursor)
	}
	limit := q.Limit
	q.Limit = limit + 1

	videos, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}

	p := &Page{Items: []FeedItem{}}
	if len(videos) > limit {
		p.HasMore = true
		videos = videos[:limit]
	}

	authors := make(map[string]*Author)
	for _, v := range videos {
		a, ok := authors[v.UserID]
		if !ok {
			a = s.author(ctx, v.UserID)
			authors[v.UserID] = a
		}
		p.Items = append(p.Items, FeedItem{Video: v, Author: a})
	}
	if p.HasMore && len(videos) > 0 {
		p.NextCursor = videos[len(videos)-1].CreatedAt.UnixMilli()
	}
	return p, nil
}

func (s *Service) author(ctx context.Context, userID string) *Author {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "failed to load video author", "user_id", userID, "error", err)
		}
		return nil
	}
	return &Author{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfileImage: u.ProfileImage,
		Verified:     u.Verified,
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
