package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when a username belongs to another user.
	ErrUsernameTaken = errors.New("username already taken")
)

// Repository defines persistence for users.
type Repository interface {
	// Insert stores a new user. Returns ErrUsernameTaken on a duplicate username.
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Update replaces a user. Returns ErrUsernameTaken on a duplicate username.
	Update(ctx context.Context, u *User) error
	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]*User, error)
	// Search matches term case-insensitively against username and display name.
	Search(ctx context.Context, term string, limit int) ([]*User, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*User),
	}
}

// usernameTakenLocked reports whether username belongs to a user other than id.
func (r *InMemoryRepository) usernameTakenLocked(username, id string) bool {
	for _, u := range r.users {
		if u.ID != id && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func (r *InMemoryRepository) Insert(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTakenLocked(u.Username, u.ID) {
		return ErrUsernameTaken
	}

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *InMemoryRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *InMemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	if r.usernameTakenLocked(u.Username, u.ID) {
		return ErrUsernameTaken
	}

	u.UpdatedAt = time.Now()
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) Search(ctx context.Context, term string, limit int) ([]*User, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	var out []*User
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Username), term) ||
			strings.Contains(strings.ToLower(u.DisplayName), term) {
			out = append(out, u)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
