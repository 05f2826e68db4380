package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/reelcast/internal/notification"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

// SweepResult counts the outcome of one PublishDue run.
type SweepResult struct {
	Published int
	Failed    int
	// Skipped posts were moved out of the scheduled state by someone else
	// while the sweep was working on them.
	Skipped int
}

func (r SweepResult) String() string {
	return fmt.Sprintf("published=%d failed=%d skipped=%d", r.Published, r.Failed, r.Skipped)
}

// PublishDue materializes every due scheduled post into a video. Each post
// ends the sweep published or failed; only listing errors fail the run.
func (s *Service) PublishDue(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	due, err := s.repo.ListDue(ctx, s.now())
	if err != nil {
		return res, fmt.Errorf("list due posts: %w", err)
	}

	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch s.publish(ctx, p) {
		case StatusPublished:
			res.Published++
		case StatusFailed:
			res.Failed++
		default:
			res.Skipped++
		}
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "scheduled post sweep finished",
			"due", len(due), "published", res.Published, "failed", res.Failed, "skipped", res.Skipped)
	}
	return res, nil
}

// publish returns the status the post ended in, or "" when another writer
// changed it first.
func (s *Service) publish(ctx context.Context, p *Post) Status {
	log := s.logger.With("scheduled_post_id", p.ID, "user_id", p.UserID)

	if _, err := s.users.GetByID(ctx, p.UserID); err != nil {
		reason := "user not found"
		if !errors.Is(err, user.ErrUserNotFound) {
			reason = err.Error()
		}
		return s.fail(ctx, p, reason)
	}

	recordedAt := p.CreatedAt
	scheduledAt := p.ScheduledFor
	v := &video.Video{
		UserID:       p.UserID,
		VideoURL:     p.VideoData,
		ThumbnailURL: p.ThumbnailURL,
		Duration:     p.Duration,
		Description:  p.Description,
		Status:       video.StatusReady,
		Device: video.Device{
			DeviceType: "scheduled",
			AppVersion: "1.0",
			RecordedAt: &recordedAt,
		},
		ScheduledPostID: p.ID,
		ScheduledAt:     &scheduledAt,
	}
	if err := s.videos.Insert(ctx, v); err != nil {
		log.ErrorContext(ctx, "failed to create video for scheduled post", "error", err)
		return s.fail(ctx, p, err.Error())
	}

	err := s.repo.Transition(ctx, p.ID, Transition{
		From:    StatusScheduled,
		To:      StatusPublished,
		VideoID: v.ID,
	})
	if err != nil {
		// The post is no longer ours to publish; retract the video.
		v.IsDeleted = true
		if uerr := s.videos.Update(ctx, v); uerr != nil {
			log.ErrorContext(ctx, "failed to retract video", "video_id", v.ID, "error", uerr)
		}
		if errors.Is(err, ErrStatusConflict) {
			log.InfoContext(ctx, "scheduled post changed during publish", "video_id", v.ID)
			return ""
		}
		log.ErrorContext(ctx, "failed to mark scheduled post published", "error", err)
		return s.fail(ctx, p, err.Error())
	}

	if err := user.AdjustCounter(ctx, s.users, p.UserID, user.VideoCount, 1); err != nil {
		log.WarnContext(ctx, "failed to increment video count", "error", err)
	}
	notification.NotifyBestEffort(ctx, s.notifier, s.logger, p.UserID, notification.VideoReadyPayload{
		VideoID:         v.ID,
		ScheduledPostID: p.ID,
	})
	log.InfoContext(ctx, "scheduled post published", "video_id", v.ID)
	return StatusPublished
}

func (s *Service) fail(ctx context.Context, p *Post, reason string) Status {
	err := s.repo.Transition(ctx, p.ID, Transition{
		From:          StatusScheduled,
		To:            StatusFailed,
		FailureReason: reason,
	})
	if errors.Is(err, ErrStatusConflict) {
		return ""
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark scheduled post failed",
			"scheduled_post_id", p.ID, "error", err)
		return ""
	}
	s.logger.WarnContext(ctx, "scheduled post failed", "scheduled_post_id", p.ID, "reason", reason)
	return StatusFailed
}
