package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/reelcast/internal/idempotency"
)

// IdempotencyKeyHeader is the request header carrying the client key.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a response served from the store.
const IdempotentReplayHeader = "Idempotent-Replayed"

// idempotencyResponseWriter passes the response through and keeps a copy.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

// IdempotencyConfig configures Idempotency.
type IdempotencyConfig struct {
	Store   idempotency.Store
	Route   string // pattern recorded with each stored response
	TTL     time.Duration
	Logger  *slog.Logger
	Metrics *Metrics
}

// Idempotency replays the stored 2xx response for a repeated Idempotency-Key.
// Requests without the header pass through. Keys are scoped to the
// authenticated user and the route. Store failures degrade to
// non-idempotent handling rather than failing the request.
func Idempotency(cfg IdempotencyConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = idempotency.DefaultTTL
	}
	store, route, metrics := cfg.Store, cfg.Route, cfg.Metrics
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				SetErrorCode(r.Context(), "validation_error")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":"validation_error","message":"`+err.Error()+`"}}`)
				return
			}

			ctx := r.Context()
			scoped := idempotency.ScopedKey(GetUserID(ctx), route, key)
			existing, err := store.Get(ctx, scoped)
			switch {
			case err == nil:
				metrics.recordReplay(route)
				logger.InfoContext(ctx, "replaying idempotent response", "route", route, "status", existing.StatusCode)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(existing.StatusCode)
				_, _ = io.WriteString(w, existing.Body)
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				metrics.recordIdempotencyError(route, "get")
				logger.ErrorContext(ctx, "failed to check idempotency key", "route", route, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			body := capture.body.String()
			rec := &idempotency.Record{
				Key:          scoped,
				Route:        route,
				StatusCode:   capture.statusCode,
				Body:         body,
				ResponseHash: idempotency.ComputeResponseHash(body),
			}
			if err := store.Put(ctx, rec, cfg.TTL); err != nil {
				metrics.recordIdempotencyError(route, "put")
				logger.WarnContext(ctx, "failed to store idempotent response", "route", route, "error", err)
			}
		})
	}
}
