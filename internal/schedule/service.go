package schedule

import (
	"context"
	"errors"
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

// Config holds optional Service settings.
type Config struct {
	// Location is used for the most-scheduled day and hour. Defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service implements the scheduled post lifecycle.
type Service struct {
	repo     Repository
	users    user.Repository
	videos   video.Repository
	notifier notification.Notifier
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new schedule service. notifier may be nil.
func NewService(repo Repository, users user.Repository, videos video.Repository, notifier notification.Notifier, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     repo,
		users:    users,
		videos:   videos,
		notifier: notifier,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// CreateInput is the argument of Create.
type CreateInput struct {
	UserID       string
	VideoData    string
	ThumbnailURL string
	Duration     float64
	Description  string
	ScheduledFor time.Time
}

func (s *Service) requireOwner(ctx context.Context, caller authz.Caller, userID string) error {
	if err := caller.RequireSelf(userID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}

// Create schedules a post for a future time.
func (s *Service) Create(ctx context.Context, caller authz.Caller, in CreateInput) (*Post, error) {
	if err := s.requireOwner(ctx, caller, in.UserID); err != nil {
		return nil, err
	}
	if !in.ScheduledFor.After(s.now()) {
		return nil, apperr.Validation("scheduled time must be in the future")
	}
	if in.VideoData == "" {
		return nil, apperr.Validation("video data is required")
	}
	if in.ThumbnailURL == "" {
		return nil, apperr.Validation("thumbnail url is required")
	}
	thumb, err := validate.MediaURL(in.ThumbnailURL)
	if err != nil {
		return nil, apperr.Validation("invalid thumbnail url: %v", err)
	}
	if in.Duration <= 0 || in.Duration > video.MaxDurationSeconds {
		return nil, apperr.Validation("duration must be between 0 and %d seconds", video.MaxDurationSeconds)
	}
	desc, err := validate.Caption(in.Description)
	if err != nil {
		return nil, apperr.Validation("invalid description: %v", err)
	}

	pending, err := s.repo.CountByStatus(ctx, in.UserID, StatusScheduled)
	if err != nil {
		return nil, err
	}
	if pending >= MaxPending {
		return nil, apperr.LimitExceeded("maximum %d scheduled posts allowed", MaxPending)
	}

	p := &Post{
		UserID:       in.UserID,
		VideoData:    in.VideoData,
		ThumbnailURL: thumb,
		Duration:     in.Duration,
		Description:  desc,
		ScheduledFor: in.ScheduledFor,
		Status:       StatusScheduled,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "post scheduled",
		"scheduled_post_id", p.ID, "user_id", p.UserID, "scheduled_for", p.ScheduledFor)
	return p, nil
}

// Upcoming returns the owner's still-scheduled future posts, soonest first.
func (s *Service) Upcoming(ctx context.Context, caller authz.Caller, userID string) ([]*Post, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	all, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []*Post{}
	for _, p := range all {
		if p.Status == StatusScheduled && !p.ScheduledFor.Before(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ownedScheduled loads a post the caller owns that is still scheduled.
func (s *Service) ownedScheduled(ctx context.Context, caller authz.Caller, id string) (*Post, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrPostNotFound) {
		return nil, apperr.NotFound("scheduled post not found")
	}
	if err != nil {
		return nil, err
	}
	if err := caller.RequireSelf(p.UserID); err != nil {
		return nil, err
	}
	if p.Status != StatusScheduled {
		return nil, errNotScheduled
	}
	return p, nil
}

var errNotScheduled = apperr.InvalidState("post is no longer scheduled")

// Cancel moves a scheduled post to cancelled.
func (s *Service) Cancel(ctx context.Context, caller authz.Caller, id string) error {
	if _, err := s.ownedScheduled(ctx, caller, id); err != nil {
		return err
	}
	err := s.repo.Transition(ctx, id, Transition{From: StatusScheduled, To: StatusCancelled})
	if errors.Is(err, ErrStatusConflict) {
		return errNotScheduled
	}
	return err
}

// UpdateInput changes the description and/or time of a scheduled post.
type UpdateInput struct {
	Description  *string
	ScheduledFor *time.Time
}

// Update edits a post that is still scheduled.
func (s *Service) Update(ctx context.Context, caller authz.Caller, id string, in UpdateInput) (*Post, error) {
	p, err := s.ownedScheduled(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if in.ScheduledFor != nil {
		if !in.ScheduledFor.After(s.now()) {
			return nil, apperr.Validation("scheduled time must be in the future")
		}
		p.ScheduledFor = *in.ScheduledFor
	}
	if in.Description != nil {
		desc, err := validate.Caption(*in.Description)
		if err != nil {
			return nil, apperr.Validation("invalid description: %v", err)
		}
		p.Description = desc
	}

	err = s.repo.UpdateScheduled(ctx, p)
	if errors.Is(err, ErrStatusConflict) {
		return nil, errNotScheduled
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Analytics summarizes a user's scheduling history.
type Analytics struct {
	TotalScheduled    int    `json:"total_scheduled"`
	TotalPublished    int    `json:"total_published"`
	TotalCancelled    int    `json:"total_cancelled"`
	TotalFailed       int    `json:"total_failed"`
	UpcomingThisWeek  int    `json:"upcoming_this_week"`
	MostScheduledDay  string `json:"most_scheduled_day"`
	MostScheduledTime string `json:"most_scheduled_time"`
}

// SchedulingAnalytics counts posts per status, the posts due within the next
// seven days, and the most common weekday and hour of published posts.
func (s *Service) SchedulingAnalytics(ctx context.Context, caller authz.Caller, userID string) (*Analytics, error) {
	if err := s.requireOwner(ctx, caller, userID); err != nil {
		return nil, err
	}
	posts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	weekOut := now.Add(7 * 24 * time.Hour)
	out := &Analytics{}
	var (
		dayFreq  [7]int
		dayOrder []int
		hourFreq [24]int
	)
	for _, p := range posts {
		switch p.Status {
		case StatusScheduled:
			out.TotalScheduled++
			if p.ScheduledFor.After(now) && p.ScheduledFor.Before(weekOut) {
				out.UpcomingThisWeek++
			}
		case StatusPublished:
			out.TotalPublished++
			local := p.ScheduledFor.In(s.loc)
			d := int(local.Weekday())
			if dayFreq[d] == 0 {
				dayOrder = append(dayOrder, d)
			}
			dayFreq[d]++
			hourFreq[local.Hour()]++
		case StatusCancelled:
			out.TotalCancelled++
		case StatusFailed:
			out.TotalFailed++
		}
	}

	best := 0
	for _, d := range dayOrder {
		if dayFreq[d] > best {
			best = dayFreq[d]
			out.MostScheduledDay = analytics.DayName(d)
		}
	}
	best = 0
	for h, n := range hourFreq {
		if n > best {
			best = n
			out.MostScheduledTime = analytics.TimeString(h)
		}
	}
	return out, nil
}
