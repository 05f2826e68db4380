package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/reelcast/internal/stats"
	"github.com/onnwee/reelcast/internal/user"
)

// FollowCounter counts follows created for a user in [from, to).
type FollowCounter interface {
	CountFollowersBetween(ctx context.Context, userID string, from, to time.Time) (int64, error)
}

// RollupResult summarizes one rollup run.
type RollupResult struct {
	Date     string `json:"date"`
	Users    int    `json:"users"`
	Inserted int64  `json:"inserted"`
	Updated  int64  `json:"updated"`
	Failed   int64  `json:"failed"`
}

func (r *RollupResult) String() string {
	return fmt.Sprintf("date=%s users=%d inserted=%d updated=%d failed=%d",
		r.Date, r.Users, r.Inserted, r.Updated, r.Failed)
}

// Rollup aggregates one calendar day of events into CreatorStats rows and
// folds the day's hourly buckets into PostPerformance.
type Rollup struct {
	store   Store
	users   user.Repository
	follows FollowCounter
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewRollup creates a rollup over every user in users. follows may be nil,
// in which case NewFollowers is always 0.
func NewRollup(store Store, users user.Repository, follows FollowCounter, cfg Config) *Rollup {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Rollup{
		store:   store,
		users:   users,
		follows: follows,
		loc:     cfg.Location,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// Yesterday returns the calendar day before now in the rollup time zone.
func (r *Rollup) Yesterday() time.Time {
	return r.now().In(r.loc).AddDate(0, 0, -1)
}

// RunYesterday rolls up the previous calendar day.
func (r *Rollup) RunYesterday(ctx context.Context) (*RollupResult, error) {
	return r.Run(ctx, r.Yesterday())
}

// Run rolls up the calendar day containing date. Rows are keyed by that
// day, so re-running a date overwrites its rows. A failing user is logged
// and counted without stopping the run; only listing users can fail the run.
func (r *Rollup) Run(ctx context.Context, date time.Time) (*RollupResult, error) {
	d := date.In(r.loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	to := from.AddDate(0, 0, 1)
	dateKey := DateKey(from)

	users, err := r.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	batch := stats.NewBatch()
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inserted, err := r.rollupUser(ctx, u.ID, dateKey, from, to)
		if err != nil {
			batch.RecordFailure()
			r.logger.ErrorContext(ctx, "rollup failed for user",
				"user_id", u.ID, "date", dateKey, "error", err)
			continue
		}
		batch.RecordUpsert(inserted)
	}
	batch.LogSummary(ctx, r.logger, "daily_rollup")

	return &RollupResult{
		Date:     dateKey,
		Users:    len(users),
		Inserted: batch.Inserted(),
		Updated:  batch.Updated(),
		Failed:   batch.Failed(),
	}, nil
}

func (r *Rollup) rollupUser(ctx context.Context, userID, dateKey string, from, to time.Time) (bool, error) {
	events, err := r.store.ListEvents(ctx, EventQuery{UserID: userID, Since: from, Until: to})
	if err != nil {
		return false, fmt.Errorf("list events: %w", err)
	}

	var newFollowers int64
	if r.follows != nil {
		if newFollowers, err = r.follows.CountFollowersBetween(ctx, userID, from, to); err != nil {
			return false, fmt.Errorf("count followers: %w", err)
		}
	}

	t := Summarize(events)
	row := &CreatorStats{
		UserID:            userID,
		Date:              dateKey,
		TotalViews:        t.Views,
		TotalLikes:        t.Likes,
		TotalComments:     t.Comments,
		TotalShares:       t.Shares,
		TotalTips:         t.Tips,
		TotalWatchTime:    t.WatchTime,
		UniqueViewers:     t.UniqueViewers,
		NewFollowers:      newFollowers,
		AvgEngagementRate: EngagementRate(t.Engagements(), t.Views),
		TopVideoID:        TopVideo(events),
	}
	inserted, err := r.store.UpsertCreatorStats(ctx, row)
	if err != nil {
		return false, fmt.Errorf("upsert stats: %w", err)
	}

	// The fold marker lives on the stats row, so a run that wrote the row
	// but failed to fold is folded by the next run, and a completed fold is
	// never repeated.
	if _, err := r.store.FoldPerformance(ctx, userID, dateKey, BucketEvents(events)); err != nil {
		return inserted, fmt.Errorf("fold post performance: %w", err)
	}
	return inserted, nil
}

// TopVideo returns the video with the most non-view events, first seen
// winning ties, or "" when no video has any.
func TopVideo(events []*Event) string {
	var (
		order  []string
		counts = make(map[string]int)
	)
	for _, e := range events {
		if _, ok := counts[e.VideoID]; !ok {
			counts[e.VideoID] = 0
			order = append(order, e.VideoID)
		}
		if e.EventType != EventView {
			counts[e.VideoID]++
		}
	}

	top, best := "", 0
	for _, id := range order {
		if counts[id] > best {
			top, best = id, counts[id]
		}
	}
	return top
}

// foldSample adds one day's slot to a running average.
func foldSample(p PostPerformance, s TimeSlot) PostPerformance {
	n := float64(p.SampleCount)
	p.AvgViews = (p.AvgViews*n + s.AvgViews) / (n + 1)
	p.AvgEngagement = (p.AvgEngagement*n + s.AvgEngagement) / (n + 1)
	p.SampleCount++
	return p
}
