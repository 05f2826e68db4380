package authz

import (
	"errors"
	"testing"

	"github.com/onnwee/reelcast/internal/apperr"
)

func TestCaller_Require(t *testing.T) {
	if err := Anonymous().Require(); !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Errorf("anonymous Require() = %v, want ErrNotAuthenticated", err)
	}
	if err := User("u1").Require(); err != nil {
		t.Errorf("authenticated Require() = %v, want nil", err)
	}
}

func TestCaller_RequireSelf(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		target  string
		wantErr error
	}{
		{"owner", User("u1"), "u1", nil},
		{"other user", User("u1"), "u2", apperr.ErrUnauthorized},
		{"anonymous", Anonymous(), "u1", apperr.ErrNotAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.caller.RequireSelf(tt.target)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RequireSelf() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCaller_Is(t *testing.T) {
	if Anonymous().Is("") {
		t.Error("anonymous caller must not match empty user id")
	}
	if !User("u1").Is("u1") {
		t.Error("expected caller to match own id")
	}
}
