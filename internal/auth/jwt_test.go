package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService(testSecret)

	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{"valid access token", "user-123", nil},
		{"empty userID", "", ErrEmptyUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := svc.GenerateAccessToken(tt.userID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GenerateAccessToken() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && token == "" {
				t.Error("GenerateAccessToken() returned empty token")
			}
		})
	}
}

func TestAccessSubject(t *testing.T) {
	svc := NewJWTService(testSecret)

	access, _ := svc.GenerateAccessToken("user-123")
	refresh, _ := svc.GenerateRefreshToken("user-123")
	foreign, _ := NewJWTService("another-secret").GenerateAccessToken("user-123")

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{"access token", access, "user-123", nil},
		{"refresh token rejected", refresh, "", ErrWrongType},
		{"wrong secret", foreign, "", ErrInvalidToken},
		{"garbage", "not.a.jwt", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.AccessSubject(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AccessSubject() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("AccessSubject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret).WithLeeway(0)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatal(err)
	}
	svc.now = time.Now

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateToken_Leeway(t *testing.T) {
	svc := NewJWTService(testSecret)
	issued := time.Now().Add(-AccessTokenExpiry - 10*time.Second)
	svc.now = func() time.Time { return issued }
	token, _ := svc.GenerateAccessToken("user-123")
	svc.now = time.Now

	if _, err := svc.ValidateToken(token); err != nil {
		t.Errorf("token 10s past expiry should pass with default leeway: %v", err)
	}
}

func TestValidateToken_Rotation(t *testing.T) {
	old := NewJWTService("old-secret")
	token, _ := old.GenerateAccessToken("user-123")

	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")
	if sub, err := rotated.AccessSubject(token); err != nil || sub != "user-123" {
		t.Errorf("token signed with previous secret should validate: %q, %v", sub, err)
	}

	fresh, _ := rotated.GenerateAccessToken("user-456")
	if _, err := old.ValidateToken(fresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("new tokens must be signed with the current secret, got %v", err)
	}
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTService(testSecret).ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}
