package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestRun(t *testing.T) {
	boom := errors.New("boom")
	results := Run(context.Background(), map[string]Checker{
		"redis":    checkerFunc(func(context.Context) error { return boom }),
		"database": checkerFunc(func(context.Context) error { return nil }),
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name != "database" || results[0].Err != nil {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Name != "redis" || !errors.Is(results[1].Err, boom) {
		t.Errorf("unexpected second result %+v", results[1])
	}
}

func TestRun_Empty(t *testing.T) {
	if got := Run(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}

func TestRedisChecker_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := NewRedisChecker(client).HealthCheck(ctx); err == nil {
		t.Error("expected error for unreachable redis")
	}
}
