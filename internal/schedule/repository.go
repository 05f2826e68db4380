package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPostNotFound is returned when a scheduled post does not exist.
	ErrPostNotFound = errors.New("scheduled post not found")

	// ErrStatusConflict is returned when a conditional write finds the post
	// in a different status than expected.
	ErrStatusConflict = errors.New("scheduled post status changed")
)

// Transition describes a compare-and-set status change.
type Transition struct {
	From          Status
	To            Status
	VideoID       string
	FailureReason string
}

// Repository defines persistence for scheduled posts.
type Repository interface {
	Insert(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	// ListByUser returns every post of a user ordered by ScheduledFor ascending.
	ListByUser(ctx context.Context, userID string) ([]*Post, error)
	CountByStatus(ctx context.Context, userID string, status Status) (int, error)
	// ListDue returns scheduled posts with ScheduledFor <= now, oldest first.
	ListDue(ctx context.Context, now time.Time) ([]*Post, error)
	// UpdateScheduled writes Description and ScheduledFor only while the
	// post is still scheduled; otherwise ErrStatusConflict.
	UpdateScheduled(ctx context.Context, p *Post) error
	// Transition moves the post from t.From to t.To atomically, or returns
	// ErrStatusConflict when the current status is not t.From.
	Transition(ctx context.Context, id string, t Transition) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewInMemoryRepository creates a new in-memory scheduled post repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{posts: make(map[string]*Post)}
}

func (r *InMemoryRepository) Insert(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	copied := *p
	r.posts[p.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *InMemoryRepository) filter(match func(*Post) bool) []*Post {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Post
	for _, p := range r.posts {
		if match(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	return out
}

func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]*Post, error) {
	return r.filter(func(p *Post) bool { return p.UserID == userID }), nil
}

func (r *InMemoryRepository) CountByStatus(ctx context.Context, userID string, status Status) (int, error) {
	return len(r.filter(func(p *Post) bool { return p.UserID == userID && p.Status == status })), nil
}

func (r *InMemoryRepository) ListDue(ctx context.Context, now time.Time) ([]*Post, error) {
	return r.filter(func(p *Post) bool {
		return p.Status == StatusScheduled && !p.ScheduledFor.After(now)
	}), nil
}

func (r *InMemoryRepository) UpdateScheduled(ctx context.Context, p *Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.posts[p.ID]
	if !ok {
		return ErrPostNotFound
	}
	if cur.Status != StatusScheduled {
		return ErrStatusConflict
	}
	cur.Description = p.Description
	cur.ScheduledFor = p.ScheduledFor
	cur.UpdatedAt = time.Now()
	return nil
}

func (r *InMemoryRepository) Transition(ctx context.Context, id string, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.posts[id]
	if !ok {
		return ErrPostNotFound
	}
	if cur.Status != t.From {
		return ErrStatusConflict
	}
	cur.Status = t.To
	if t.VideoID != "" {
		cur.VideoID = t.VideoID
	}
	if t.FailureReason != "" {
		cur.FailureReason = t.FailureReason
	}
	cur.UpdatedAt = time.Now()
	return nil
}
