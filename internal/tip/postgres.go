package tip

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

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

const tipColumns = `id, from_user_id, to_user_id, COALESCE(video_id, ''), amount, currency,
	message, status, COALESCE(stripe_intent_id, ''), created_at, updated_at`

func scanTip(row interface{ Scan(...any) error }) (*Tip, error) {
	var t Tip
	err := row.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.VideoID, &t.Amount, &t.Currency,
		&t.Message, &t.Status, &t.StripeIntentID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, t *Tip) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tips", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tips (id, from_user_id, to_user_id, video_id, amount, currency,
			message, status, stripe_intent_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
		t.ID, t.FromUserID, t.ToUserID, t.VideoID, t.Amount, t.Currency,
		t.Message, t.Status, t.StripeIntentID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tip: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (t *Tip, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tips", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	t, err = scanTip(r.db.QueryRowContext(ctx, `SELECT `+tipColumns+` FROM tips WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTipNotFound
	}
	return t, err
}

func (r *PostgresRepository) SetIntent(ctx context.Context, id, intentID string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tips", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx,
		`UPDATE tips SET stripe_intent_id = $2, updated_at = NOW() WHERE id = $1`, id, intentID)
	if err != nil {
		return fmt.Errorf("set tip intent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTipNotFound
	}
	return nil
}

// Settle performs the status change and earnings upsert in one transaction.
func (r *PostgresRepository) Settle(ctx context.Context, id string, s Settlement) (t *Tip, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tips", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	t, err = scanTip(tx.QueryRowContext(ctx, `
		UPDATE tips SET status = $2, stripe_intent_id = COALESCE(NULLIF($3, ''), stripe_intent_id), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+tipColumns, id, s.Status, s.StripeIntentID))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if qerr := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tips WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, qerr
		}
		if !exists {
			return nil, ErrTipNotFound
		}
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("settle tip: %w", err)
	}

	if s.Status == StatusCompleted {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO creator_earnings (user_id, month, tip_earnings, total_earnings, updated_at)
			VALUES ($1, $2, $3, $3, NOW())
			ON CONFLICT (user_id, month) DO UPDATE SET
				tip_earnings = creator_earnings.tip_earnings + EXCLUDED.tip_earnings,
				total_earnings = creator_earnings.total_earnings + EXCLUDED.total_earnings,
				updated_at = NOW()`,
			t.ToUserID, s.Month, t.Amount)
		if err != nil {
			return nil, fmt.Errorf("upsert earnings: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) listTips(ctx context.Context, q string, args ...any) (out []*Tip, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "tips", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tips: %w", err)
	}
	defer rows.Close()

	out = []*Tip{}
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func noLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (r *PostgresRepository) ListReceived(ctx context.Context, userID string, status Status, limit int) ([]*Tip, error) {
	return r.listTips(ctx, `
		SELECT `+tipColumns+` FROM tips
		WHERE to_user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3`, userID, string(status), noLimit(limit))
}

func (r *PostgresRepository) ListSent(ctx context.Context, userID string, limit int) ([]*Tip, error) {
	return r.listTips(ctx, `
		SELECT `+tipColumns+` FROM tips
		WHERE from_user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, noLimit(limit))
}

func (r *PostgresRepository) ListEarnings(ctx context.Context, userID, month string) (out []*Earnings, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "creator_earnings", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, month, view_earnings, engagement_earnings, tip_earnings,
			sponsorship_earnings, total_earnings, paid_out, updated_at
		FROM creator_earnings
		WHERE user_id = $1 AND ($2 = '' OR month = $2)
		ORDER BY month DESC`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	out = []*Earnings{}
	for rows.Next() {
		var e Earnings
		if err := rows.Scan(&e.UserID, &e.Month, &e.ViewEarnings, &e.EngagementEarnings, &e.TipEarnings,
			&e.SponsorshipEarnings, &e.TotalEarnings, &e.PaidOut, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
