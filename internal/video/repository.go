package video

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrVideoNotFound is returned when a video does not exist.
var ErrVideoNotFound = errors.New("video not found")

// ListQuery selects a page of non-deleted videos ordered by CreatedAt descending.
type ListQuery struct {
	// AuthorIDs restricts results to these owners. Nil means all owners;
	// an empty non-nil slice matches nothing.
	AuthorIDs []string
	// Before excludes videos created at or after this instant. Zero means no bound.
	Before time.Time
	Limit  int
}

// Repository defines persistence for videos and raw views.
type Repository interface {
	Insert(ctx context.Context, v *Video) error
	// GetByID returns the video even when soft-deleted.
	GetByID(ctx context.Context, id string) (*Video, error)
	Update(ctx context.Context, v *Video) error
	List(ctx context.Context, q ListQuery) ([]*Video, error)
	InsertView(ctx context.Context, view *View) error
	ListViews(ctx context.Context, videoID string) ([]*View, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu     sync.RWMutex
	videos map[string]*Video
	views  []*View
}

// NewInMemoryRepository creates a new in-memory video repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		videos: make(map[string]*Video),
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	copied := *v
	r.videos[v.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.videos[v.ID]; !ok {
		return ErrVideoNotFound
	}
	v.UpdatedAt = time.Now()
	copied := *v
	r.videos[v.ID] = &copied
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context, q ListQuery) ([]*Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var authors map[string]bool
	if q.AuthorIDs != nil {
		authors = make(map[string]bool, len(q.AuthorIDs))
		for _, id := range q.AuthorIDs {
			authors[id] = true
		}
	}

	var out []*Video
	for _, v := range r.videos {
		if v.IsDeleted {
			continue
		}
		if authors != nil && !authors[v.UserID] {
			continue
		}
		if !q.Before.IsZero() && !v.CreatedAt.Before(q.Before) {
			continue
		}
		copied := *v
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) InsertView(ctx context.Context, view *View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if view.ID == "" {
		view.ID = uuid.New().String()
	}
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}
	copied := *view
	r.views = append(r.views, &copied)
	return nil
}

func (r *InMemoryRepository) ListViews(ctx context.Context, videoID string) ([]*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*View
	for _, v := range r.views {
		if v.VideoID == videoID {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}
