package middleware

import (
	"net/http"
	"strings"
)

// TokenValidator resolves an access token to a user id.
type TokenValidator interface {
	AccessSubject(token string) (string, error)
}

// Authenticate reads an optional "Authorization: Bearer <token>" header.
// Valid tokens put the user id in the context; requests without a header
// continue anonymously. A present but invalid token is rejected with 401
// so that clients notice expired sessions.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeAuthError(w, "malformed authorization header")
				return
			}
			userID, err := v.AccessSubject(strings.TrimSpace(token))
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}
			tagSpanUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="reelcast"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"auth_failed","message":"` + message + `"}}`))
}

// RequireInternalToken guards internal endpoints with a shared secret sent in
// the X-Internal-Token header. An empty secret disables the endpoints.
func RequireInternalToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || !constantTimeEqual(r.Header.Get("X-Internal-Token"), secret) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":{"code":"forbidden","message":"internal endpoint"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
