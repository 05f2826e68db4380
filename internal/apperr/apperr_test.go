package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"not authenticated", NotAuthenticated(), ErrNotAuthenticated, "not authenticated"},
		{"unauthorized", Unauthorized("cannot view analytics of %s", "u1"), ErrUnauthorized, "cannot view analytics of u1"},
		{"not found", NotFound("video not found"), ErrNotFound, "video not found"},
		{"validation", Validation("amount must be between %d and %d", 1, 500), ErrValidation, "amount must be between 1 and 500"},
		{"limit", LimitExceeded("maximum 10 scheduled posts"), ErrLimitExceeded, "maximum 10 scheduled posts"},
		{"state", InvalidState("post is no longer scheduled"), ErrInvalidState, "post is no longer scheduled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.kind) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.kind)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("publish post p1: %w", NotFound("user not found"))
	if KindOf(err) != ErrNotFound {
		t.Errorf("expected wrapped error to keep its kind, got %v", KindOf(err))
	}
}

func TestKindOf_Plain(t *testing.T) {
	if KindOf(errors.New("boom")) != nil {
		t.Error("expected nil kind for plain error")
	}
	if KindOf(nil) != nil {
		t.Error("expected nil kind for nil error")
	}
}
