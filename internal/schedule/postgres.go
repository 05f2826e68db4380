package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/reelcast/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Status changes
// are conditional UPDATEs on the expected status.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const postColumns = `id, user_id, video_data, thumbnail_url, duration, description,
	scheduled_for, status, COALESCE(video_id, ''), failure_reason, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.UserID, &p.VideoData, &p.ThumbnailURL, &p.Duration, &p.Description,
		&p.ScheduledFor, &p.Status, &p.VideoID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, p *Post) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scheduled_posts (id, user_id, video_data, thumbnail_url, duration, description,
			scheduled_for, status, video_id, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		p.ID, p.UserID, p.VideoData, p.ThumbnailURL, p.Duration, p.Description,
		p.ScheduledFor, p.Status, p.VideoID, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert scheduled post: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (p *Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	p, err = scanPost(r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM scheduled_posts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	return p, err
}

func (r *PostgresRepository) query(ctx context.Context, where string, args ...any) (out []*Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM scheduled_posts
		WHERE `+where+`
		ORDER BY scheduled_for ASC, created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Post, error) {
	return r.query(ctx, `user_id = $1`, userID)
}

func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time) ([]*Post, error) {
	return r.query(ctx, `status = 'scheduled' AND scheduled_for <= $1`, now)
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, userID string, status Status) (n int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scheduled_posts WHERE user_id = $1 AND status = $2`,
		userID, status).Scan(&n)
	return n, err
}

// conflictOrMissing distinguishes a lost compare-and-set from a missing row.
func (r *PostgresRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM scheduled_posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPostNotFound
	}
	return ErrStatusConflict
}

func (r *PostgresRepository) UpdateScheduled(ctx context.Context, p *Post) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	p.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_posts SET description = $2, scheduled_for = $3, updated_at = $4
		WHERE id = $1 AND status = 'scheduled'`,
		p.ID, p.Description, p.ScheduledFor, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update scheduled post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.conflictOrMissing(ctx, p.ID)
	}
	return nil
}

func (r *PostgresRepository) Transition(ctx context.Context, id string, t Transition) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "scheduled_posts", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_posts SET
			status = $3,
			video_id = COALESCE(NULLIF($4, ''), video_id),
			failure_reason = CASE WHEN $5 = '' THEN failure_reason ELSE $5 END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, t.From, t.To, t.VideoID, t.FailureReason)
	if err != nil {
		return fmt.Errorf("transition scheduled post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}
