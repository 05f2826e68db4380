package analytics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrStatsNotFound is returned when no CreatorStats row exists for a date.
var ErrStatsNotFound = errors.New("creator stats not found")

// EventQuery selects events for one creator. Zero times leave that side unbounded.
type EventQuery struct {
	UserID string
	Since  time.Time // inclusive
	Until  time.Time // exclusive
	Type   EventType // empty = all types
}

func (q EventQuery) match(e *Event) bool {
	if e.UserID != q.UserID {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.Timestamp.Before(q.Until) {
		return false
	}
	return q.Type == "" || e.EventType == q.Type
}

// Store persists analytics events and rollup rows.
type Store interface {
	InsertEvent(ctx context.Context, e *Event) error
	// ListEvents returns matching events ordered by timestamp ascending.
	ListEvents(ctx context.Context, q EventQuery) ([]*Event, error)

	// UpsertCreatorStats replaces the row for (UserID, Date), reporting
	// whether a new row was inserted. It leaves the row's fold marker alone.
	UpsertCreatorStats(ctx context.Context, s *CreatorStats) (inserted bool, err error)
	GetCreatorStats(ctx context.Context, userID, date string) (*CreatorStats, error)
	// ListCreatorStats returns rows with date >= sinceDate ordered by date.
	ListCreatorStats(ctx context.Context, userID, sinceDate string) ([]*CreatorStats, error)

	ListPostPerformance(ctx context.Context, userID string) ([]*PostPerformance, error)
	// FoldPerformance adds one sample per slot to the user's running
	// averages and marks the (userID, date) stats row folded, as one unit of
	// work. It reports false and changes nothing when the row is already
	// folded or missing.
	FoldPerformance(ctx context.Context, userID, date string, slots []TimeSlot) (folded bool, err error)
}

type statsKey struct{ userID, date string }

type bucketKey struct {
	userID          string
	hour, dayOfWeek int
}

// InMemoryStore implements Store with in-memory storage.
type InMemoryStore struct {
	mu          sync.RWMutex
	events      []*Event
	stats       map[statsKey]*CreatorStats
	folded      map[statsKey]bool
	performance map[bucketKey]*PostPerformance
}

// NewInMemoryStore creates a new in-memory analytics store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stats:       make(map[statsKey]*CreatorStats),
		folded:      make(map[statsKey]bool),
		performance: make(map[bucketKey]*PostPerformance),
	}
}

func (s *InMemoryStore) InsertEvent(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	copied := *e
	s.events = append(s.events, &copied)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, q EventQuery) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.events {
		if q.match(e) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *InMemoryStore) UpsertCreatorStats(ctx context.Context, cs *CreatorStats) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := statsKey{cs.UserID, cs.Date}
	_, exists := s.stats[k]
	cs.UpdatedAt = time.Now()
	copied := *cs
	s.stats[k] = &copied
	return !exists, nil
}

func (s *InMemoryStore) GetCreatorStats(ctx context.Context, userID, date string) (*CreatorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.stats[statsKey{userID, date}]
	if !ok {
		return nil, ErrStatsNotFound
	}
	copied := *cs
	return &copied, nil
}

func (s *InMemoryStore) ListCreatorStats(ctx context.Context, userID, sinceDate string) ([]*CreatorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*CreatorStats
	for k, cs := range s.stats {
		if k.userID == userID && cs.Date >= sinceDate {
			copied := *cs
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *InMemoryStore) ListPostPerformance(ctx context.Context, userID string) ([]*PostPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*PostPerformance
	for k, p := range s.performance {
		if k.userID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (s *InMemoryStore) FoldPerformance(ctx context.Context, userID, date string, slots []TimeSlot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := statsKey{userID, date}
	if _, ok := s.stats[k]; !ok || s.folded[k] {
		return false, nil
	}
	for _, slot := range slots {
		bk := bucketKey{userID, slot.Hour, slot.DayOfWeek}
		p, ok := s.performance[bk]
		if !ok {
			p = &PostPerformance{UserID: userID, Hour: slot.Hour, DayOfWeek: slot.DayOfWeek}
		}
		s.putPerformance(foldSample(*p, slot))
	}
	s.folded[k] = true
	return true, nil
}

// putPerformance stores p as is. Callers hold s.mu.
func (s *InMemoryStore) putPerformance(p PostPerformance) {
	p.UpdatedAt = time.Now()
	s.performance[bucketKey{p.UserID, p.Hour, p.DayOfWeek}] = &p
}
