package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"client id kept", "mobile-7f3a.retry_2", true},
		{"unsafe characters replaced", "abc\r\nSet-Cookie: x", false},
		{"spaces replaced", "two words", false},
		{"overlong id replaced", strings.Repeat("a", maxRequestIDLength+1), false},
		{"max length kept", strings.Repeat("a", maxRequestIDLength), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inCtx string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inCtx = GetRequestID(r.Context())
			}))
			r := httptest.NewRequest(http.MethodPost, "/v1/analytics/views", nil)
			if tt.incoming != "" {
				r.Header[RequestIDHeader] = []string{tt.incoming}
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			echoed := w.Header().Get(RequestIDHeader)
			if echoed != inCtx {
				t.Errorf("response header %q differs from context %q", echoed, inCtx)
			}
			if tt.keep {
				if inCtx != tt.incoming {
					t.Errorf("id = %q, want client id kept", inCtx)
				}
				return
			}
			if _, err := uuid.Parse(inCtx); err != nil {
				t.Errorf("id = %q, want a generated UUID", inCtx)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(context.Background()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
