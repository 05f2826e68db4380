package sponsorship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/reelcast/internal/tracing"
)

// ErrNoAgreement is returned by Latest when the user never accepted.
var ErrNoAgreement = errors.New("no sponsorship agreement")

// Repository persists agreements.
type Repository interface {
	Insert(ctx context.Context, a *Agreement) error
	// Latest returns the most recently accepted agreement.
	Latest(ctx context.Context, userID string) (*Agreement, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu     sync.RWMutex
	byUser map[string][]Agreement // append order
}

// NewInMemoryRepository creates a new in-memory agreement repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byUser: make(map[string][]Agreement)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, a *Agreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	r.byUser[a.UserID] = append(r.byUser[a.UserID], *a)
	return nil
}

func (r *InMemoryRepository) Latest(ctx context.Context, userID string) (*Agreement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byUser[userID]
	if len(list) == 0 {
		return nil, ErrNoAgreement
	}
	latest := list[len(list)-1]
	return &latest, nil
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, a *Agreement) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sponsorship_agreements", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sponsorship_agreements (id, user_id, version, accepted_at, ip_address)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		a.ID, a.UserID, a.Version, a.AcceptedAt, a.IPAddress)
	if err != nil {
		return fmt.Errorf("insert agreement: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string) (a *Agreement, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "sponsorship_agreements", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var out Agreement
	err = r.db.QueryRowContext(ctx, `
		SELECT id, user_id, version, accepted_at, COALESCE(ip_address, '')
		FROM sponsorship_agreements
		WHERE user_id = $1
		ORDER BY accepted_at DESC, seq DESC
		LIMIT 1`, userID).Scan(&out.ID, &out.UserID, &out.Version, &out.AcceptedAt, &out.IPAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAgreement
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
