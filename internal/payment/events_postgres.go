package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/onnwee/reelcast/internal/tracing"
)

const pgUniqueViolation = "23505"

// PostgresEventLog stores claims in webhook_events; the unique index on
// event_id arbitrates concurrent deliveries across instances.
type PostgresEventLog struct {
	db *sql.DB
}

// NewPostgresEventLog wraps db.
func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

func (l *PostgresEventLog) Claim(ctx context.Context, eventID, eventType string) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "webhook_events", tracing.DBOperationInsert)
	defer func() { end(err) }()

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event_id, event_type, outcome) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), eventID, eventType, OutcomePending)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrEventAlreadyProcessed
	}
	if err != nil {
		return fmt.Errorf("claim webhook event: %w", err)
	}
	return nil
}

func (l *PostgresEventLog) Release(ctx context.Context, eventID string) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "webhook_events", tracing.DBOperationDelete)
	defer func() { end(err) }()

	_, err = l.db.ExecContext(ctx,
		`DELETE FROM webhook_events WHERE event_id = $1 AND outcome = $2`, eventID, OutcomePending)
	if err != nil {
		return fmt.Errorf("release webhook event: %w", err)
	}
	return nil
}

func (l *PostgresEventLog) Resolve(ctx context.Context, eventID, tipID string, outcome Outcome) (err error) {
	ctx, end := tracing.StartDBSpan(ctx, "webhook_events", tracing.DBOperationUpdate)
	defer func() { end(err) }()

	res, err := l.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET tip_id = NULLIF($2, ''), outcome = $3, resolved_at = NOW()
		WHERE event_id = $1`,
		eventID, tipID, outcome)
	if err != nil {
		return fmt.Errorf("resolve webhook event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (l *PostgresEventLog) Get(ctx context.Context, eventID string) (_ *Event, err error) {
	ctx, end := tracing.StartDBSpan(ctx, "webhook_events", tracing.DBOperationQuery)
	defer func() { end(err) }()

	var (
		e        Event
		tipID    sql.NullString
		resolved sql.NullTime
	)
	err = l.db.QueryRowContext(ctx, `
		SELECT event_id, event_type, tip_id, outcome, processed_at, resolved_at
		FROM webhook_events WHERE event_id = $1`, eventID,
	).Scan(&e.EventID, &e.EventType, &tipID, &e.Outcome, &e.ReceivedAt, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	e.TipID = tipID.String
	if resolved.Valid {
		e.ResolvedAt = &resolved.Time
	}
	return &e, nil
}
