package social

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyExists is returned when inserting a relation that already exists.
	ErrAlreadyExists = errors.New("relation already exists")

	// ErrCommentNotFound is returned when a comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")
)

// Repository defines persistence for social relations and comments.
// Delete methods report whether a row was removed.
type Repository interface {
	InsertFollow(ctx context.Context, f *Follow) error
	DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	// ListFollowers returns follows into userID, newest first.
	ListFollowers(ctx context.Context, userID string, limit int) ([]*Follow, error)
	// ListFollowing returns follows out of userID, newest first.
	ListFollowing(ctx context.Context, userID string, limit int) ([]*Follow, error)
	CountFollowers(ctx context.Context, userID string) (int64, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
	// CountFollowersBetween counts follows into userID created in [from, to).
	CountFollowersBetween(ctx context.Context, userID string, from, to time.Time) (int64, error)

	InsertLike(ctx context.Context, l *Like) error
	DeleteLike(ctx context.Context, userID, videoID string) (bool, error)
	IsLiked(ctx context.Context, userID, videoID string) (bool, error)
	ListLikes(ctx context.Context, videoID string, limit int) ([]*Like, error)
	CountLikes(ctx context.Context, videoID string) (int64, error)

	InsertBookmark(ctx context.Context, b *Bookmark) error
	DeleteBookmark(ctx context.Context, userID, videoID string) (bool, error)
	IsBookmarked(ctx context.Context, userID, videoID string) (bool, error)
	// ListBookmarks returns bookmarks created before the given instant
	// (zero = no bound), newest first.
	ListBookmarks(ctx context.Context, userID string, before time.Time, limit int) ([]*Bookmark, error)

	InsertComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	UpdateComment(ctx context.Context, c *Comment) error
	// ListComments returns non-deleted comments on a video, oldest first.
	ListComments(ctx context.Context, videoID string) ([]*Comment, error)
	CountComments(ctx context.Context, videoID string) (int64, error)
}

type pairKey struct{ a, b string }

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu        sync.RWMutex
	follows   map[pairKey]*Follow
	likes     map[pairKey]*Like
	bookmarks map[pairKey]*Bookmark
	comments  map[string]*Comment
}

// NewInMemoryRepository creates a new in-memory social repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		follows:   make(map[pairKey]*Follow),
		likes:     make(map[pairKey]*Like),
		bookmarks: make(map[pairKey]*Bookmark),
		comments:  make(map[string]*Comment),
	}
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func (r *InMemoryRepository) InsertFollow(ctx context.Context, f *Follow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{f.FollowerID, f.FollowingID}
	if _, ok := r.follows[k]; ok {
		return ErrAlreadyExists
	}
	stamp(&f.CreatedAt)
	copied := *f
	r.follows[k] = &copied
	return nil
}

func (r *InMemoryRepository) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{followerID, followingID}
	_, ok := r.follows[k]
	delete(r.follows, k)
	return ok, nil
}

func (r *InMemoryRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.follows[pairKey{followerID, followingID}]
	return ok, nil
}

func (r *InMemoryRepository) listFollows(match func(*Follow) bool, limit int) []*Follow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Follow
	for _, f := range r.follows {
		if match(f) {
			copied := *f
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *InMemoryRepository) ListFollowers(ctx context.Context, userID string, limit int) ([]*Follow, error) {
	return r.listFollows(func(f *Follow) bool { return f.FollowingID == userID }, limit), nil
}

func (r *InMemoryRepository) ListFollowing(ctx context.Context, userID string, limit int) ([]*Follow, error) {
	return r.listFollows(func(f *Follow) bool { return f.FollowerID == userID }, limit), nil
}

func (r *InMemoryRepository) CountFollowers(ctx context.Context, userID string) (int64, error) {
	return int64(len(r.listFollows(func(f *Follow) bool { return f.FollowingID == userID }, 0))), nil
}

func (r *InMemoryRepository) CountFollowing(ctx context.Context, userID string) (int64, error) {
	return int64(len(r.listFollows(func(f *Follow) bool { return f.FollowerID == userID }, 0))), nil
}

func (r *InMemoryRepository) CountFollowersBetween(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	return int64(len(r.listFollows(func(f *Follow) bool {
		return f.FollowingID == userID && !f.CreatedAt.Before(from) && f.CreatedAt.Before(to)
	}, 0))), nil
}

func (r *InMemoryRepository) InsertLike(ctx context.Context, l *Like) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{l.UserID, l.VideoID}
	if _, ok := r.likes[k]; ok {
		return ErrAlreadyExists
	}
	stamp(&l.CreatedAt)
	copied := *l
	r.likes[k] = &copied
	return nil
}

func (r *InMemoryRepository) DeleteLike(ctx context.Context, userID, videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{userID, videoID}
	_, ok := r.likes[k]
	delete(r.likes, k)
	return ok, nil
}

func (r *InMemoryRepository) IsLiked(ctx context.Context, userID, videoID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.likes[pairKey{userID, videoID}]
	return ok, nil
}

func (r *InMemoryRepository) ListLikes(ctx context.Context, videoID string, limit int) ([]*Like, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Like
	for _, l := range r.likes {
		if l.VideoID == videoID {
			copied := *l
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) CountLikes(ctx context.Context, videoID string) (int64, error) {
	likes, _ := r.ListLikes(ctx, videoID, 0)
	return int64(len(likes)), nil
}

func (r *InMemoryRepository) InsertBookmark(ctx context.Context, b *Bookmark) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{b.UserID, b.VideoID}
	if _, ok := r.bookmarks[k]; ok {
		return ErrAlreadyExists
	}
	stamp(&b.CreatedAt)
	copied := *b
	r.bookmarks[k] = &copied
	return nil
}

func (r *InMemoryRepository) DeleteBookmark(ctx context.Context, userID, videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := pairKey{userID, videoID}
	_, ok := r.bookmarks[k]
	delete(r.bookmarks, k)
	return ok, nil
}

func (r *InMemoryRepository) IsBookmarked(ctx context.Context, userID, videoID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bookmarks[pairKey{userID, videoID}]
	return ok, nil
}

func (r *InMemoryRepository) ListBookmarks(ctx context.Context, userID string, before time.Time, limit int) ([]*Bookmark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Bookmark
	for _, b := range r.bookmarks {
		if b.UserID != userID {
			continue
		}
		if !before.IsZero() && !b.CreatedAt.Before(before) {
			continue
		}
		copied := *b
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) InsertComment(ctx context.Context, c *Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	stamp(&c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	copied := *c
	r.comments[c.ID] = &copied
	return nil
}

func (r *InMemoryRepository) GetComment(ctx context.Context, id string) (*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *InMemoryRepository) UpdateComment(ctx context.Context, c *Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[c.ID]; !ok {
		return ErrCommentNotFound
	}
	c.UpdatedAt = time.Now()
	copied := *c
	r.comments[c.ID] = &copied
	return nil
}

func (r *InMemoryRepository) ListComments(ctx context.Context, videoID string) ([]*Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Comment
	for _, c := range r.comments {
		if c.VideoID == videoID && !c.IsDeleted {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) CountComments(ctx context.Context, videoID string) (int64, error) {
	comments, _ := r.ListComments(ctx, videoID)
	return int64(len(comments)), nil
}
