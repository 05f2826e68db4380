package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeClock lets window expiry be driven without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*InMemoryRateLimitStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)}
	s := NewInMemoryRateLimitStore()
	s.now = clock.now
	return s, clock
}

func TestInMemoryRateLimitStore_CountsDownAndBlocks(t *testing.T) {
	store, clock := newClockedStore()
	tip := PerMinute(PolicyTip, 3)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		d, err := store.Allow(ctx, "user:fan", tip)
		if err != nil || !d.Allowed || d.Remaining != want {
			t.Fatalf("Allow = %+v, %v; want allowed with %d remaining", d, err, want)
		}
	}
	d, _ := store.Allow(ctx, "user:fan", tip)
	if d.Allowed {
		t.Fatal("fourth tip within the window should be blocked")
	}
	if !d.ResetAt.Equal(clock.now().Add(time.Minute)) {
		t.Errorf("ResetAt = %v, want window end", d.ResetAt)
	}

	clock.advance(time.Minute)
	if d, _ := store.Allow(ctx, "user:fan", tip); !d.Allowed || d.Remaining != 2 {
		t.Errorf("after the window: %+v, want a fresh budget", d)
	}
}

func TestInMemoryRateLimitStore_PoliciesDoNotShareBuckets(t *testing.T) {
	store, _ := newClockedStore()
	ctx := context.Background()
	tip := PerMinute(PolicyTip, 1)
	global := PerMinute(PolicyGlobal, 1)

	if d, _ := store.Allow(ctx, "user:fan", tip); !d.Allowed {
		t.Fatal("first tip should pass")
	}
	if d, _ := store.Allow(ctx, "user:fan", global); !d.Allowed {
		t.Error("global budget consumed by the tip policy")
	}
	if d, _ := store.Allow(ctx, "user:other", tip); !d.Allowed {
		t.Error("keys share a bucket")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()
	_, _ = store.Allow(ctx, "ip:1", PerMinute(PolicyGlobal, 5))
	_, _ = store.Allow(ctx, "ip:2", RateLimitPolicy{Name: PolicyTracking, Limit: 5, Window: time.Hour})

	clock.advance(2 * time.Minute)
	store.Cleanup()
	if store.Len() != 1 {
		t.Errorf("windows after cleanup = %d, want 1 (the hour window survives)", store.Len())
	}
}

func TestInMemoryRateLimitStore_Concurrent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	views := PerMinute(PolicyTracking, 300)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 400; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := store.Allow(context.Background(), "ip:viewer", views); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 300 {
		t.Errorf("allowed = %d, want 300", allowed)
	}
}

func TestDecision_RetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		reset time.Time
		want  int
	}{
		{now.Add(42 * time.Second), 42},
		{now.Add(300 * time.Millisecond), 1},
		{now.Add(-time.Second), 1},
	}
	for _, tt := range tests {
		if got := (Decision{ResetAt: tt.reset}).RetryAfter(now); got != tt.want {
			t.Errorf("RetryAfter(%v) = %d, want %d", tt.reset.Sub(now), got, tt.want)
		}
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()
	tests := []struct {
		name, remote, xff, realIP, want string
	}{
		{name: "remote addr", remote: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remote: "192.168.1.1", want: "192.168.1.1"},
		{name: "ipv6", remote: "[2001:db8::1]:8080", want: "2001:db8::1"},
		{name: "first forwarded hop", remote: "10.0.0.1:1", xff: " 203.0.113.50 , 198.51.100.1", want: "203.0.113.50"},
		{name: "real ip", remote: "10.0.0.1:1", realIP: " 203.0.113.7 ", want: "203.0.113.7"},
		{name: "forwarded wins over real ip", remote: "10.0.0.1:1", xff: "203.0.113.50", realIP: "198.51.100.1", want: "203.0.113.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/analytics/views", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := keyFunc(r); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	keyFunc := UserKeyFunc()
	r := httptest.NewRequest(http.MethodPost, "/v1/analytics/views", nil)
	r.RemoteAddr = "192.168.1.1:12345"
	if got := keyFunc(r); got != "ip:192.168.1.1" {
		t.Errorf("anonymous viewer key = %q", got)
	}
	r = r.WithContext(SetUserID(r.Context(), "u-123"))
	if got := keyFunc(r); got != "user:u-123" {
		t.Errorf("signed-in key = %q", got)
	}
}

func TestRateLimit_TipPolicy(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	metrics := NewMetrics()
	var served int
	h := RateLimit(store, PerMinute(PolicyTip, 2), UserKeyFunc(), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/v1/tips", nil)
		r = r.WithContext(SetUserID(r.Context(), "fan"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}
	first := send()
	if first.Header().Get("X-RateLimit-Limit") != "2" || first.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Errorf("headers on first tip = %v", first.Header())
	}
	send()
	blocked := send()

	if served != 2 {
		t.Errorf("served = %d, want 2", served)
	}
	if blocked.Code != http.StatusTooManyRequests {
		t.Fatalf("third tip status = %d, want 429", blocked.Code)
	}
	if s, err := strconv.Atoi(blocked.Header().Get("Retry-After")); err != nil || s < 1 || s > 60 {
		t.Errorf("Retry-After = %q", blocked.Header().Get("Retry-After"))
	}
	if blocked.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining on block = %q", blocked.Header().Get("X-RateLimit-Remaining"))
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(blocked.Body).Decode(&body); err != nil || body.Error.Code != "rate_limit_exceeded" {
		t.Errorf("body code = %q, err = %v", body.Error.Code, err)
	}

	if got := testutil.ToFloat64(metrics.limitDecisions.WithLabelValues(PolicyTip, "user", OutcomeAllowed)); got != 2 {
		t.Errorf("allowed decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.limitDecisions.WithLabelValues(PolicyTip, "user", OutcomeBlocked)); got != 1 {
		t.Errorf("blocked decisions = %v, want 1", got)
	}
}

type brokenLimitStore struct{}

func (brokenLimitStore) Allow(context.Context, string, RateLimitPolicy) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}

func TestRateLimit_StoreFailureFailsOpen(t *testing.T) {
	metrics := NewMetrics()
	h := RateLimit(brokenLimitStore{}, PerMinute(PolicyTracking, 1), IPKeyFunc(), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/analytics/views", nil))
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", w.Code)
		}
	}
	if got := testutil.ToFloat64(metrics.limitStoreErrors.WithLabelValues(PolicyTracking)); got != 3 {
		t.Errorf("store errors = %v, want 3", got)
	}
}

func TestRateLimit_ReportsErrorCodeToLogging(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	var code string
	limited := RateLimit(store, PerMinute(PolicyGlobal, 1), IPKeyFunc(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	outer := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(context.WithValue(r.Context(), errorCodeKey{}, &errorCodeHolder{}))
		limited.ServeHTTP(w, r)
		code = GetErrorCode(r.Context())
	})
	for i := 0; i < 2; i++ {
		outer.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/videos/feed", nil))
	}
	if code != "rate_limit_exceeded" {
		t.Errorf("error code = %q, want rate_limit_exceeded", code)
	}
}

func TestRateLimitPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RateLimitPolicy
		wantErr bool
	}{
		{"per minute", PerMinute(PolicyGlobal, 100), false},
		{"unnamed", RateLimitPolicy{Limit: 1, Window: time.Minute}, true},
		{"zero limit", PerMinute(PolicyTip, 0), true},
		{"negative window", RateLimitPolicy{Name: PolicyTip, Limit: 1, Window: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPolicies(t *testing.T) {
	want := map[string]int{PolicyGlobal: 100, PolicyTracking: 300, PolicyTip: 10}
	got := DefaultPolicies()
	for name, limit := range want {
		p := got[name]
		if p.Name != name || p.Limit != limit || p.Window != time.Minute {
			t.Errorf("default %s = %+v", name, p)
		}
	}
	got[PolicyTip] = PerMinute(PolicyTip, 1)
	if DefaultPolicies()[PolicyTip].Limit != 10 {
		t.Error("DefaultPolicies returned shared state")
	}
}
