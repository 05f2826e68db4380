// Package authz carries the identity of the caller into every operation.
//
// Services never look the caller up from ambient state; handlers build a
// Caller from the authenticated request and pass it explicitly.
package authz

import (
	"github.com/onnwee/reelcast/internal/apperr"
)

// Caller is the request-scoped identity of whoever invoked an operation.
// The zero value is an anonymous caller.
type Caller struct {
	UserID    string
	IPAddress string
}

// Anonymous returns a caller without identity.
func Anonymous() Caller {
	return Caller{}
}

// User returns a caller authenticated as userID.
func User(userID string) Caller {
	return Caller{UserID: userID}
}

// Authenticated reports whether the caller has an identity.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Require fails with NotAuthenticated for anonymous callers.
func (c Caller) Require() error {
	if !c.Authenticated() {
		return apperr.NotAuthenticated()
	}
	return nil
}

// RequireSelf fails unless the caller is authenticated as userID.
func (c Caller) RequireSelf(userID string) error {
	if err := c.Require(); err != nil {
		return err
	}
	if c.UserID != userID {
		return apperr.Unauthorized("not allowed to act on behalf of another user")
	}
	return nil
}

// Is reports whether the caller is authenticated as userID.
func (c Caller) Is(userID string) bool {
	return c.Authenticated() && c.UserID == userID
}
