package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/reelcast/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const videoColumns = `id, user_id, video_url, thumbnail_url, duration, description,
	view_count, like_count, comment_count, share_count, tip_count,
	is_deleted, status, device_type, app_version, recorded_at, scheduled_post_id,
	scheduled_at, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*Video, error) {
	var (
		v          Video
		status     string
		recordedAt  sql.NullTime
		scheduledAt sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.UserID, &v.VideoURL, &v.ThumbnailURL, &v.Duration, &v.Description,
		&v.ViewCount, &v.LikeCount, &v.CommentCount, &v.ShareCount, &v.TipCount,
		&v.IsDeleted, &status, &v.Device.DeviceType, &v.Device.AppVersion, &recordedAt, &v.ScheduledPostID,
		&scheduledAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = Status(status)
	if recordedAt.Valid {
		t := recordedAt.Time
		v.Device.RecordedAt = &t
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		v.ScheduledAt = &t
	}
	return &v, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, v *Video) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "videos", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		v.ID, v.UserID, v.VideoURL, v.ThumbnailURL, v.Duration, v.Description,
		v.ViewCount, v.LikeCount, v.CommentCount, v.ShareCount, v.TipCount,
		v.IsDeleted, string(v.Status), v.Device.DeviceType, v.Device.AppVersion, v.Device.RecordedAt, v.ScheduledPostID,
		v.ScheduledAt, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (v *Video, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "videos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	v, err = scanVideo(r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	return v, err
}

func (r *PostgresRepository) Update(ctx context.Context, v *Video) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "videos", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	v.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE videos SET
			video_url = $2, thumbnail_url = $3, duration = $4, description = $5,
			view_count = $6, like_count = $7, comment_count = $8, share_count = $9, tip_count = $10,
			is_deleted = $11, status = $12, updated_at = $13
		WHERE id = $1`,
		v.ID, v.VideoURL, v.ThumbnailURL, v.Duration, v.Description,
		v.ViewCount, v.LikeCount, v.CommentCount, v.ShareCount, v.TipCount,
		v.IsDeleted, string(v.Status), v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, q ListQuery) (out []*Video, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "videos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if q.AuthorIDs != nil && len(q.AuthorIDs) == 0 {
		return nil, nil
	}

	var (
		where = []string{"is_deleted = false"}
		args  []any
	)
	if q.AuthorIDs != nil {
		args = append(args, pq.Array(q.AuthorIDs))
		where = append(where, fmt.Sprintf("user_id = ANY($%d)", len(args)))
	}
	if !q.Before.IsZero() {
		args = append(args, q.Before)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := `SELECT ` + videoColumns + ` FROM videos WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) InsertView(ctx context.Context, view *View) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "video_views", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if view.ID == "" {
		view.ID = uuid.New().String()
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO video_views (id, video_id, user_id, watch_time, completed, session_id, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		view.ID, view.VideoID, view.UserID, view.WatchTime, view.Completed, view.SessionID, view.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert view: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListViews(ctx context.Context, videoID string) (out []*View, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "video_views", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, COALESCE(user_id, ''), watch_time, completed, session_id, created_at
		FROM video_views WHERE video_id = $1 ORDER BY created_at`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.VideoID, &v.UserID, &v.WatchTime, &v.Completed, &v.SessionID, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
