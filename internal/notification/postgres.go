package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/reelcast/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Payloads are
// stored as JSONB and decoded by type on read.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanNotification(row interface{ Scan(...any) error }) (*Notification, error) {
	var (
		n   Notification
		raw []byte
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &raw, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	p, err := DecodePayload(n.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", n.ID, err)
	}
	n.Payload = p
	return &n, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, n *Notification) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, payload, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, payload, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (n *Notification, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	n, err = scanNotification(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, title, message, payload, read, created_at
		FROM notifications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

func (r *PostgresRepository) List(ctx context.Context, userID string, limit int, unreadOnly bool) (out []*Notification, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, payload, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "notifications", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
