// Package middleware holds the HTTP middleware chain of the API server:
// request ids, tracing, authentication, access logs, metrics, CORS, rate
// limits and idempotent replay.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type userIDKey struct{}

type errorCodeKey struct{}

// SetUserID stores the authenticated user id in the context.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// errorCodeHolder is installed by Logging so that handlers deeper in the
// chain, which only see derived contexts, can still report an error code.
type errorCodeHolder struct{ code string }

// SetErrorCode records code for the access log entry.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if h, ok := ctx.Value(errorCodeKey{}).(*errorCodeHolder); ok {
		h.code = code
		return ctx
	}
	return context.WithValue(ctx, errorCodeKey{}, &errorCodeHolder{code: code})
}

// GetErrorCode returns the recorded error code, or "".
func GetErrorCode(ctx context.Context) string {
	if h, ok := ctx.Value(errorCodeKey{}).(*errorCodeHolder); ok {
		return h.code
	}
	return ""
}

// NewLogger returns a JSON logger at info level in production and a text
// logger at debug level elsewhere, both writing to stdout.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// levelFor maps the response status to a log level.
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Logging writes one "request completed" entry per request. Error codes
// reported through SetErrorCode are included for 4xx and 5xx responses.
// A panicking handler produces no entry.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &errorCodeHolder{}
			r = r.WithContext(context.WithValue(r.Context(), errorCodeKey{}, holder))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			attrs := make([]slog.Attr, 0, 10)
			attrs = append(attrs,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routeLabel(r.URL.Path)),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("bytes", rec.written),
			)
			for _, kv := range [...][2]string{
				{"request_id", GetRequestID(ctx)},
				{"trace_id", TraceID(ctx)},
				{"user_id", GetUserID(ctx)},
			} {
				if kv[1] != "" {
					attrs = append(attrs, slog.String(kv[0], kv[1]))
				}
			}
			if rec.status >= 400 && holder.code != "" {
				attrs = append(attrs, slog.String("error_code", holder.code))
			}
			logger.LogAttrs(ctx, levelFor(rec.status), "request completed", attrs...)
		})
	}
}
