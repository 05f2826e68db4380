// Package reconcile recomputes denormalized counters from the relation tables.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/reelcast/internal/stats"
	"github.com/onnwee/reelcast/internal/user"
	"github.com/onnwee/reelcast/internal/video"
)

// DefaultConcurrency is the number of users reconciled in parallel.
const DefaultConcurrency = 4

// Counts provides the authoritative relation counts.
type Counts interface {
	CountFollowers(ctx context.Context, userID string) (int64, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
	CountLikes(ctx context.Context, videoID string) (int64, error)
	CountComments(ctx context.Context, videoID string) (int64, error)
}

// Config holds optional Reconciler settings.
type Config struct {
	Concurrency int
	Logger      *slog.Logger
}

// Reconciler corrects user follower/following/video counts and video
// like/comment counts.
type Reconciler struct {
	users       user.Repository
	videos      video.Repository
	counts      Counts
	concurrency int
	logger      *slog.Logger
}

// New creates a Reconciler.
func New(users user.Repository, videos video.Repository, counts Counts, cfg Config) *Reconciler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reconciler{users: users, videos: videos, counts: counts, concurrency: cfg.Concurrency, logger: cfg.Logger}
}

// Result reports how many entities were corrected or could not be checked.
type Result struct {
	Users     int
	Corrected int64
	Failed    int64
}

func (r Result) String() string {
	return fmt.Sprintf("users=%d corrected=%d failed=%d", r.Users, r.Corrected, r.Failed)
}

// Run reconciles every user and their live videos. Per-entity failures are
// logged and counted; only listing users fails the run.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	all, err := r.users.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list users: %w", err)
	}

	batch := stats.NewBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, u := range all {
		g.Go(func() error {
			if err := r.reconcileUser(gctx, u.ID, batch); err != nil {
				r.logger.ErrorContext(gctx, "counter reconciliation failed", "user_id", u.ID, "error", err)
				batch.RecordFailure()
			}
			return nil
		})
	}
	_ = g.Wait()

	batch.LogSummary(ctx, r.logger, "counter_reconcile")
	return Result{Users: len(all), Corrected: batch.Updated(), Failed: batch.Failed()}, ctx.Err()
}

func (r *Reconciler) reconcileUser(ctx context.Context, userID string, batch *stats.Batch) error {
	vids, err := r.videos.List(ctx, video.ListQuery{AuthorIDs: []string{userID}})
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}
	for _, v := range vids {
		if err := r.reconcileVideo(ctx, v, batch); err != nil {
			r.logger.WarnContext(ctx, "video reconciliation failed", "video_id", v.ID, "error", err)
			batch.RecordFailure()
		}
	}

	followers, err := r.counts.CountFollowers(ctx, userID)
	if err != nil {
		return err
	}
	following, err := r.counts.CountFollowing(ctx, userID)
	if err != nil {
		return err
	}

	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	videoCount := int64(len(vids))
	if u.FollowerCount == followers && u.FollowingCount == following && u.VideoCount == videoCount {
		return nil
	}
	r.logger.InfoContext(ctx, "correcting user counters", "user_id", userID,
		"follower_count", followers, "following_count", following, "video_count", videoCount)
	u.FollowerCount, u.FollowingCount, u.VideoCount = followers, following, videoCount
	if err := r.users.Update(ctx, u); err != nil {
		return err
	}
	batch.RecordUpsert(false)
	return nil
}

func (r *Reconciler) reconcileVideo(ctx context.Context, v *video.Video, batch *stats.Batch) error {
	likes, err := r.counts.CountLikes(ctx, v.ID)
	if err != nil {
		return err
	}
	comments, err := r.counts.CountComments(ctx, v.ID)
	if err != nil {
		return err
	}
	if v.LikeCount == likes && v.CommentCount == comments {
		return nil
	}
	v.LikeCount, v.CommentCount = likes, comments
	if err := r.videos.Update(ctx, v); err != nil {
		return err
	}
	batch.RecordUpsert(false)
	return nil
}
