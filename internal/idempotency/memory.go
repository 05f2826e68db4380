package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps records in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]memoryEntry), now: time.Now}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, ErrKeyNotFound
	}
	rec := e.rec
	return &rec, nil
}

func (s *InMemoryStore) Put(_ context.Context, rec *Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.records[rec.Key]; ok && now.Before(e.expiresAt) {
		return ErrKeyExists
	}
	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	s.records[rec.Key] = memoryEntry{rec: stored, expiresAt: now.Add(ttl)}
	return nil
}

// DeleteExpired drops expired records and returns how many were removed.
func (s *InMemoryStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.records {
		if !now.Before(e.expiresAt) {
			delete(s.records, k)
			removed++
		}
	}
	return removed
}
