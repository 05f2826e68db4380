package tip

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTipNotFound is returned when a tip does not exist.
	ErrTipNotFound = errors.New("tip not found")

	// ErrNotPending is returned by Settle when the tip already left pending.
	ErrNotPending = errors.New("tip is not pending")
)

// Settlement moves a pending tip to its final status.
type Settlement struct {
	Status         Status // completed or failed
	StripeIntentID string
	// Month receives the tip amount as earnings when Status is completed.
	Month string
}

// Repository defines persistence for tips and monthly earnings.
type Repository interface {
	Insert(ctx context.Context, t *Tip) error
	GetByID(ctx context.Context, id string) (*Tip, error)
	SetIntent(ctx context.Context, id, intentID string) error
	// Settle transitions a pending tip and, for completed tips, adds the
	// amount to the recipient's earnings for s.Month in the same unit of work.
	Settle(ctx context.Context, id string, s Settlement) (*Tip, error)
	// ListReceived and ListSent return newest first. limit <= 0 means all.
	ListReceived(ctx context.Context, userID string, status Status, limit int) ([]*Tip, error)
	ListSent(ctx context.Context, userID string, limit int) ([]*Tip, error)
	// ListEarnings returns months newest first; month == "" means all months.
	ListEarnings(ctx context.Context, userID, month string) ([]*Earnings, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu       sync.RWMutex
	tips     map[string]*Tip
	earnings map[string]*Earnings // userID|month
}

// NewInMemoryRepository creates a new in-memory tip repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tips:     make(map[string]*Tip),
		earnings: make(map[string]*Earnings),
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, t *Tip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	copied := *t
	r.tips[t.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Tip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tips[id]
	if !ok {
		return nil, ErrTipNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *InMemoryRepository) SetIntent(ctx context.Context, id, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tips[id]
	if !ok {
		return ErrTipNotFound
	}
	t.StripeIntentID = intentID
	t.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) Settle(ctx context.Context, id string, s Settlement) (*Tip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tips[id]
	if !ok {
		return nil, ErrTipNotFound
	}
	if t.Status != StatusPending {
		return nil, ErrNotPending
	}
	now := time.Now()
	t.Status = s.Status
	if s.StripeIntentID != "" {
		t.StripeIntentID = s.StripeIntentID
	}
	t.UpdatedAt = now

	if s.Status == StatusCompleted {
		key := t.ToUserID + "|" + s.Month
		e, ok := r.earnings[key]
		if !ok {
			e = &Earnings{UserID: t.ToUserID, Month: s.Month}
			r.earnings[key] = e
		}
		e.TipEarnings += t.Amount
		e.TotalEarnings += t.Amount
		e.UpdatedAt = now
	}
	copied := *t
	return &copied, nil
}

func (r *InMemoryRepository) list(match func(*Tip) bool, limit int) []*Tip {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Tip{}
	for _, t := range r.tips {
		if match(t) {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InMemoryRepository) ListReceived(ctx context.Context, userID string, status Status, limit int) ([]*Tip, error) {
	return r.list(func(t *Tip) bool {
		return t.ToUserID == userID && (status == "" || t.Status == status)
	}, limit), nil
}

func (r *InMemoryRepository) ListSent(ctx context.Context, userID string, limit int) ([]*Tip, error) {
	return r.list(func(t *Tip) bool { return t.FromUserID == userID }, limit), nil
}

func (r *InMemoryRepository) ListEarnings(ctx context.Context, userID, month string) ([]*Earnings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Earnings{}
	for _, e := range r.earnings {
		if e.UserID == userID && (month == "" || e.Month == month) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}
