package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Policy names used by the API router.
const (
	PolicyGlobal   = "global"
	PolicyTracking = "tracking"
	PolicyTip      = "tip"
)

// RateLimitPolicy is a named fixed-window budget. Each policy counts in its
// own buckets, so tip sends do not consume the global allowance.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// PerMinute returns a policy allowing n requests per minute.
func PerMinute(name string, n int) RateLimitPolicy {
	return RateLimitPolicy{Name: name, Limit: n, Window: time.Minute}
}

// Validate rejects unnamed policies and non-positive budgets.
func (p RateLimitPolicy) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("rate limit policy needs a name")
	case p.Limit <= 0:
		return fmt.Errorf("rate limit policy %q: limit must be > 0 (got %d)", p.Name, p.Limit)
	case p.Window <= 0:
		return fmt.Errorf("rate limit policy %q: window must be > 0 (got %s)", p.Name, p.Window)
	}
	return nil
}

// DefaultPolicies are the limits used when configuration leaves them unset:
// 100/min for the API, 300/min for analytics ingestion, 10/min for tips.
func DefaultPolicies() map[string]RateLimitPolicy {
	return map[string]RateLimitPolicy{
		PolicyGlobal:   PerMinute(PolicyGlobal, 100),
		PolicyTracking: PerMinute(PolicyTracking, 300),
		PolicyTip:      PerMinute(PolicyTip, 10),
	}
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimitStore counts requests per policy and key.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type window struct {
	count int
	ends  time.Time
}

// InMemoryRateLimitStore keeps fixed windows in a map. It serves a single
// API instance; Cleanup must run periodically to drop stale windows.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewInMemoryRateLimitStore creates an empty store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{windows: make(map[string]*window), now: time.Now}
}

// Allow never fails.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := policy.Name + ":" + key
	w, ok := s.windows[id]
	if !ok || !now.Before(w.ends) {
		w = &window{ends: now.Add(policy.Window)}
		s.windows[id] = w
	}
	if w.count >= policy.Limit {
		return Decision{ResetAt: w.ends}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: policy.Limit - w.count, ResetAt: w.ends}, nil
}

// Cleanup drops windows that have ended.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, w := range s.windows {
		if !now.Before(w.ends) {
			delete(s.windows, id)
		}
	}
}

// Len reports how many windows are held.
func (s *InMemoryRateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys on the client address, preferring the first
// X-Forwarded-For hop and then X-Real-IP as set by the edge proxy.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
}

// UserKeyFunc keys on the authenticated user, falling back to the client IP
// for anonymous viewers.
func UserKeyFunc() KeyFunc {
	byIP := IPKeyFunc()
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + byIP(r)
	}
}

func keyType(key string) string {
	if strings.HasPrefix(key, "user:") {
		return "user"
	}
	return "ip"
}

// RateLimit enforces policy per key. Every response carries the
// X-RateLimit-* headers; rejected requests get 429 with Retry-After.
// A failing store lets the request through. metrics may be nil.
func RateLimit(store RateLimitStore, policy RateLimitPolicy, keys KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keys(r)
			d, err := store.Allow(r.Context(), key, policy)
			if err != nil {
				metrics.recordLimitStoreError(policy.Name)
				slog.WarnContext(r.Context(), "rate limit store unavailable, allowing request", "policy", policy.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			metrics.recordLimitDecision(policy.Name, keyType(key), d.Allowed)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			SetErrorCode(r.Context(), "rate_limit_exceeded")
			h.Set("Retry-After", strconv.Itoa(d.RetryAfter(time.Now())))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"rate_limit_exceeded","message":"too many requests"}}`))
		})
	}
}
