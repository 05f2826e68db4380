package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/reelcast/internal/analytics"
	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/notification"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/validate"
	"github.com/onnwee/reelcast/internal/video"
)

// Page sizes.
const (
	DefaultFollowLimit   = 20
	DefaultLikeLimit     = 50
	DefaultBookmarkLimit = 12
	MaxLimit             = 100
)

// EngagementTracker records like and comment events and bumps the video
// counters. When nil the service adjusts the counters itself.
type EngagementTracker interface {
	TrackEngagement(ctx context.Context, caller authz.Caller, in analytics.EngagementInput) error
}

// Service implements follow, like, bookmark and comment operations.
type Service struct {
	repo     Repository
	users    user.Repository
	videos   video.Repository
	tracker  EngagementTracker
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService creates a new social service. tracker and notifier may be nil.
func NewService(repo Repository, users user.Repository, videos video.Repository, tracker EngagementTracker, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		users:    users,
		videos:   videos,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
	}
}

func clamp(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func (s *Service) getUser(ctx context.Context, id string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	return u, err
}

func (s *Service) getVideo(ctx context.Context, id string) (*video.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	if errors.Is(err, video.ErrVideoNotFound) || (err == nil && v.IsDeleted) {
		return nil, apperr.NotFound("video not found")
	}
	return v, err
}

func (s *Service) displayName(ctx context.Context, id string) string {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// FollowState is the result of ToggleFollow.
type FollowState struct {
	Following bool `json:"following"`
}

// ToggleFollow follows targetID, or unfollows if already following.
func (s *Service) ToggleFollow(ctx context.Context, caller authz.Caller, targetID string) (*FollowState, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	if caller.UserID == targetID {
		return nil, apperr.Validation("cannot follow yourself")
	}
	if _, err := s.getUser(ctx, targetID); err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteFollow(ctx, caller.UserID, targetID)
	if err != nil {
		return nil, err
	}
	delta := int64(-1)
	if !removed {
		if err := s.repo.InsertFollow(ctx, &Follow{FollowerID: caller.UserID, FollowingID: targetID}); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		delta = 1
	}

	if err := user.AdjustCounter(ctx, s.users, caller.UserID, user.FollowingCount, delta); err != nil {
		return nil, fmt.Errorf("adjust following count: %w", err)
	}
	if err := user.AdjustCounter(ctx, s.users, targetID, user.FollowerCount, delta); err != nil {
		return nil, fmt.Errorf("adjust follower count: %w", err)
	}

	if delta > 0 {
		notification.NotifyBestEffort(ctx, s.notifier, s.logger, targetID, notification.FollowPayload{
			FollowerID:   caller.UserID,
			FollowerName: s.displayName(ctx, caller.UserID),
		})
	}
	return &FollowState{Following: delta > 0}, nil
}

// IsFollowing reports whether the caller follows targetID. Anonymous callers follow nobody.
func (s *Service) IsFollowing(ctx context.Context, caller authz.Caller, targetID string) (bool, error) {
	if !caller.Authenticated() {
		return false, nil
	}
	return s.repo.IsFollowing(ctx, caller.UserID, targetID)
}

// FollowingIDs returns the ids of users userID follows.
func (s *Service) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	follows, err := s.repo.ListFollowing(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowingID)
	}
	return ids, nil
}

// CountFollowersBetween counts follows into userID created in [from, to).
func (s *Service) CountFollowersBetween(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	return s.repo.CountFollowersBetween(ctx, userID, from, to)
}

// Profile is the public summary of a user in follow and like lists.
type Profile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ProfileImage string `json:"profile_image,omitempty"`
	Verified     bool   `json:"verified"`
}

func (s *Service) profiles(ctx context.Context, ids []string) ([]Profile, error) {
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if errors.Is(err, user.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Profile{
			ID:           u.ID,
			Username:     u.Username,
			DisplayName:  u.DisplayName,
			ProfileImage: u.ProfileImage,
			Verified:     u.Verified,
		})
	}
	return out, nil
}

// Followers lists users following userID, newest first.
func (s *Service) Followers(ctx context.Context, userID string, limit int) ([]Profile, error) {
	follows, err := s.repo.ListFollowers(ctx, userID, clamp(limit, DefaultFollowLimit))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowerID)
	}
	return s.profiles(ctx, ids)
}

// Following lists users userID follows, newest first.
func (s *Service) Following(ctx context.Context, userID string, limit int) ([]Profile, error) {
	follows, err := s.repo.ListFollowing(ctx, userID, clamp(limit, DefaultFollowLimit))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(follows))
	for _, f := range follows {
		ids = append(ids, f.FollowingID)
	}
	return s.profiles(ctx, ids)
}

// LikeState is the result of ToggleLike.
type LikeState struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// ToggleLike likes a video, or removes the like if present. A new like is
// recorded as a like engagement event.
func (s *Service) ToggleLike(ctx context.Context, caller authz.Caller, videoID string) (*LikeState, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	v, err := s.getVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteLike(ctx, caller.UserID, videoID)
	if err != nil {
		return nil, err
	}
	if removed {
		if err := video.AdjustCounter(ctx, s.videos, videoID, video.LikeCount, -1); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.InsertLike(ctx, &Like{UserID: caller.UserID, VideoID: videoID}); err != nil && !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		if err := s.engage(ctx, caller, videoID, analytics.EventLike, video.LikeCount); err != nil {
			return nil, err
		}
		if v.UserID != caller.UserID {
			notification.NotifyBestEffort(ctx, s.notifier, s.logger, v.UserID, notification.LikePayload{
				VideoID:   videoID,
				LikerID:   caller.UserID,
				LikerName: s.displayName(ctx, caller.UserID),
			})
		}
	}

	after, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return &LikeState{Liked: !removed, LikeCount: after.LikeCount}, nil
}

// engage records an engagement through the tracker, or bumps the counter directly.
func (s *Service) engage(ctx context.Context, caller authz.Caller, videoID string, et analytics.EventType, c video.Counter) error {
	if s.tracker != nil {
		return s.tracker.TrackEngagement(ctx, caller, analytics.EngagementInput{VideoID: videoID, EventType: et})
	}
	return video.AdjustCounter(ctx, s.videos, videoID, c, 1)
}

// IsLiked reports whether the caller likes videoID.
func (s *Service) IsLiked(ctx context.Context, caller authz.Caller, videoID string) (bool, error) {
	if !caller.Authenticated() {
		return false, nil
	}
	return s.repo.IsLiked(ctx, caller.UserID, videoID)
}

// VideoLikes lists users who liked a video, newest first.
func (s *Service) VideoLikes(ctx context.Context, videoID string, limit int) ([]Profile, error) {
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return nil, err
	}
	likes, err := s.repo.ListLikes(ctx, videoID, clamp(limit, DefaultLikeLimit))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.UserID)
	}
	return s.profiles(ctx, ids)
}

// ToggleBookmark saves a video, or removes it if already saved.
func (s *Service) ToggleBookmark(ctx context.Context, caller authz.Caller, videoID string) (bool, error) {
	if err := caller.Require(); err != nil {
		return false, err
	}
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return false, err
	}
	removed, err := s.repo.DeleteBookmark(ctx, caller.UserID, videoID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if err := s.repo.InsertBookmark(ctx, &Bookmark{UserID: caller.UserID, VideoID: videoID}); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return false, err
	}
	return true, nil
}

// BookmarkPage is one page of saved videos. NextCursor is the bookmark time
// of the last item in Unix milliseconds.
type BookmarkPage struct {
	Videos     []*video.Video `json:"videos"`
	NextCursor int64          `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// Bookmarks returns a page of the caller's saved videos, skipping deleted ones.
func (s *Service) Bookmarks(ctx context.Context, caller authz.Caller, cursor int64, limit int) (*BookmarkPage, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	limit = clamp(limit, DefaultBookmarkLimit)
	var before time.Time
	if cursor > 0 {
		before = time.UnixMilli(cursor)
	}

	marks, err := s.repo.ListBookmarks(ctx, caller.UserID, before, limit+1)
	if err != nil {
		return nil, err
	}
	page := &BookmarkPage{Videos: []*video.Video{}}
	if len(marks) > limit {
		page.HasMore = true
		marks = marks[:limit]
	}
	for _, b := range marks {
		v, err := s.videos.GetByID(ctx, b.VideoID)
		if errors.Is(err, video.ErrVideoNotFound) || (err == nil && v.IsDeleted) {
			continue
		}
		if err != nil {
			return nil, err
		}
		page.Videos = append(page.Videos, v)
	}
	if page.HasMore && len(marks) > 0 {
		page.NextCursor = marks[len(marks)-1].CreatedAt.UnixMilli()
	}
	return page, nil
}

// CommentInput is the argument of AddComment.
type CommentInput struct {
	VideoID  string
	Content  string
	ParentID string
}

// CommentView is a comment with its author.
type CommentView struct {
	*Comment
	Author *Profile `json:"author,omitempty"`
}

// AddComment posts a comment, honoring the video owner's comment setting.
func (s *Service) AddComment(ctx context.Context, caller authz.Caller, in CommentInput) (*Comment, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	content, err := validate.CommentContent(in.Content)
	if err != nil {
		return nil, apperr.Validation("invalid comment: %v", err)
	}
	v, err := s.getVideo(ctx, in.VideoID)
	if err != nil {
		return nil, err
	}
	owner, err := s.getUser(ctx, v.UserID)
	if err != nil {
		return nil, err
	}
	if !owner.Settings.AllowComments && owner.ID != caller.UserID {
		return nil, apperr.Validation("comments are disabled for this video")
	}
	if in.ParentID != "" {
		parent, err := s.repo.GetComment(ctx, in.ParentID)
		if errors.Is(err, ErrCommentNotFound) || (err == nil && (parent.IsDeleted || parent.VideoID != v.ID)) {
			return nil, apperr.NotFound("parent comment not found")
		}
		if err != nil {
			return nil, err
		}
	}

	c := &Comment{
		VideoID:  v.ID,
		UserID:   caller.UserID,
		Content:  content,
		ParentID: in.ParentID,
	}
	if err := s.repo.InsertComment(ctx, c); err != nil {
		return nil, err
	}
	if err := s.engage(ctx, caller, v.ID, analytics.EventComment, video.CommentCount); err != nil {
		return nil, err
	}
	if v.UserID != caller.UserID {
		notification.NotifyBestEffort(ctx, s.notifier, s.logger, v.UserID, notification.CommentPayload{
			VideoID:    v.ID,
			CommentID:  c.ID,
			AuthorID:   caller.UserID,
			AuthorName: s.displayName(ctx, caller.UserID),
		})
	}
	return c, nil
}

// Comments lists a video's comments oldest first with their authors.
func (s *Service) Comments(ctx context.Context, videoID string) ([]CommentView, error) {
	if _, err := s.getVideo(ctx, videoID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, videoID)
	if err != nil {
		return nil, err
	}

	authors := make(map[string]*Profile)
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		p, ok := authors[c.UserID]
		if !ok {
			if ps, err := s.profiles(ctx, []string{c.UserID}); err == nil && len(ps) == 1 {
				p = &ps[0]
			}
			authors[c.UserID] = p
		}
		out = append(out, CommentView{Comment: c, Author: p})
	}
	return out, nil
}

// DeleteComment soft-deletes a comment. The author or the video owner may delete it.
func (s *Service) DeleteComment(ctx context.Context, caller authz.Caller, commentID string) error {
	if err := caller.Require(); err != nil {
		return err
	}
	c, err := s.repo.GetComment(ctx, commentID)
	if errors.Is(err, ErrCommentNotFound) || (err == nil && c.IsDeleted) {
		return apperr.NotFound("comment not found")
	}
	if err != nil {
		return err
	}

	v, err := s.videos.GetByID(ctx, c.VideoID)
	if err != nil && !errors.Is(err, video.ErrVideoNotFound) {
		return err
	}
	isOwner := v != nil && v.UserID == caller.UserID
	if c.UserID != caller.UserID && !isOwner {
		return apperr.Unauthorized("only the author or the video owner can delete this comment")
	}

	c.IsDeleted = true
	if err := s.repo.UpdateComment(ctx, c); err != nil {
		return err
	}
	if v != nil {
		return video.AdjustCounter(ctx, s.videos, v.ID, video.CommentCount, -1)
	}
	return nil
}
