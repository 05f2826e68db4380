package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/reelcast/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (s *PostgresStore) InsertEvent(ctx context.Context, e *Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "analytics_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	var demo Demographics
	if e.Demographics != nil {
		demo = *e.Demographics
	}
	var watch sql.NullFloat64
	if e.WatchDuration != nil {
		watch = sql.NullFloat64{Float64: *e.WatchDuration, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (
			id, video_id, user_id, event_type, viewer_id,
			country, region, device_type, age_range,
			watch_duration, amount, ts, hour, day_of_week
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.VideoID, e.UserID, e.EventType, nullString(e.ViewerID),
		nullString(demo.Country), nullString(demo.Region), nullString(demo.DeviceType), nullString(demo.AgeRange),
		watch, e.Amount, e.Timestamp, e.Hour, e.DayOfWeek,
	)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, q EventQuery) (out []*Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "analytics_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_id, user_id, event_type, COALESCE(viewer_id, ''),
			COALESCE(country, ''), COALESCE(region, ''), COALESCE(device_type, ''), COALESCE(age_range, ''),
			watch_duration, amount, ts, hour, day_of_week
		FROM analytics_events
		WHERE user_id = $1
			AND ($2::timestamptz IS NULL OR ts >= $2)
			AND ($3::timestamptz IS NULL OR ts < $3)
			AND ($4 = '' OR event_type = $4)
		ORDER BY ts ASC`,
		q.UserID, nullTime(q.Since), nullTime(q.Until), string(q.Type))
	if err != nil {
		return nil, fmt.Errorf("list analytics events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e     Event
			demo  Demographics
			watch sql.NullFloat64
		)
		if err := rows.Scan(
			&e.ID, &e.VideoID, &e.UserID, &e.EventType, &e.ViewerID,
			&demo.Country, &demo.Region, &demo.DeviceType, &demo.AgeRange,
			&watch, &e.Amount, &e.Timestamp, &e.Hour, &e.DayOfWeek,
		); err != nil {
			return nil, err
		}
		if demo != (Demographics{}) {
			e.Demographics = &demo
		}
		if watch.Valid {
			w := watch.Float64
			e.WatchDuration = &w
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

const statsColumns = `user_id, to_char(date, 'YYYY-MM-DD'), total_views, total_likes, total_comments,
	total_shares, total_tips, total_watch_time, unique_viewers, new_followers,
	avg_engagement_rate, COALESCE(top_video_id, ''), updated_at`

func scanStats(row interface{ Scan(...any) error }) (*CreatorStats, error) {
	var cs CreatorStats
	err := row.Scan(&cs.UserID, &cs.Date, &cs.TotalViews, &cs.TotalLikes, &cs.TotalComments,
		&cs.TotalShares, &cs.TotalTips, &cs.TotalWatchTime, &cs.UniqueViewers, &cs.NewFollowers,
		&cs.AvgEngagementRate, &cs.TopVideoID, &cs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// UpsertCreatorStats writes the row in one statement. xmax is 0 only on a
// freshly inserted tuple.
func (s *PostgresStore) UpsertCreatorStats(ctx context.Context, cs *CreatorStats) (inserted bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "creator_stats", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	cs.UpdatedAt = time.Now()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO creator_stats (
			user_id, date, total_views, total_likes, total_comments,
			total_shares, total_tips, total_watch_time, unique_viewers, new_followers,
			avg_engagement_rate, top_video_id, updated_at
		) VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_views = EXCLUDED.total_views,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			total_shares = EXCLUDED.total_shares,
			total_tips = EXCLUDED.total_tips,
			total_watch_time = EXCLUDED.total_watch_time,
			unique_viewers = EXCLUDED.unique_viewers,
			new_followers = EXCLUDED.new_followers,
			avg_engagement_rate = EXCLUDED.avg_engagement_rate,
			top_video_id = EXCLUDED.top_video_id,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)`,
		cs.UserID, cs.Date, cs.TotalViews, cs.TotalLikes, cs.TotalComments,
		cs.TotalShares, cs.TotalTips, cs.TotalWatchTime, cs.UniqueViewers, cs.NewFollowers,
		cs.AvgEngagementRate, nullString(cs.TopVideoID), cs.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert creator stats: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetCreatorStats(ctx context.Context, userID, date string) (cs *CreatorStats, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "creator_stats", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	cs, err = scanStats(s.db.QueryRowContext(ctx, `
		SELECT `+statsColumns+` FROM creator_stats WHERE user_id = $1 AND date = $2::date`, userID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatsNotFound
	}
	return cs, err
}

func (s *PostgresStore) ListCreatorStats(ctx context.Context, userID, sinceDate string) (out []*CreatorStats, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "creator_stats", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+statsColumns+` FROM creator_stats
		WHERE user_id = $1 AND date >= $2::date
		ORDER BY date ASC`, userID, sinceDate)
	if err != nil {
		return nil, fmt.Errorf("list creator stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		cs, err := scanStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPostPerformance(ctx context.Context, userID string) (out []*PostPerformance, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_performance", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, hour, day_of_week, avg_views, avg_engagement, sample_count, updated_at
		FROM post_performance
		WHERE user_id = $1
		ORDER BY day_of_week, hour`, userID)
	if err != nil {
		return nil, fmt.Errorf("list post performance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p PostPerformance
		if err := rows.Scan(&p.UserID, &p.Hour, &p.DayOfWeek, &p.AvgViews, &p.AvgEngagement, &p.SampleCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// FoldPerformance claims the stats row's fold marker and folds every slot
// in the same transaction. The marker update also row-locks the stats row,
// so overlapping rollups of one date fold it once.
func (s *PostgresStore) FoldPerformance(ctx context.Context, userID, date string, slots []TimeSlot) (folded bool, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "post_performance", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE creator_stats SET performance_folded = TRUE
		WHERE user_id = $1 AND date = $2::date AND NOT performance_folded`, userID, date)
	if err != nil {
		return false, fmt.Errorf("mark stats folded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark stats folded: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	now := time.Now()
	for _, slot := range slots {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_performance (user_id, hour, day_of_week, avg_views, avg_engagement, sample_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6)
			ON CONFLICT (user_id, hour, day_of_week) DO UPDATE SET
				avg_views = (post_performance.avg_views * post_performance.sample_count + EXCLUDED.avg_views)
					/ (post_performance.sample_count + 1),
				avg_engagement = (post_performance.avg_engagement * post_performance.sample_count + EXCLUDED.avg_engagement)
					/ (post_performance.sample_count + 1),
				sample_count = post_performance.sample_count + 1,
				updated_at = EXCLUDED.updated_at`,
			userID, slot.Hour, slot.DayOfWeek, slot.AvgViews, slot.AvgEngagement, now)
		if err != nil {
			return false, fmt.Errorf("fold slot %d/%d: %w", slot.DayOfWeek, slot.Hour, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}
	return true, nil
}
