// Package apperr defines the error kinds returned by reelcast operations.
//
// Every operation error wraps exactly one kind sentinel so callers can branch
// with errors.Is regardless of how many times the error was wrapped:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrInvalidState     = errors.New("invalid state")
)

// Error carries a human-readable message on top of a kind sentinel.
type Error struct {
	kind    error
	message string
}

// Error returns the message only; the kind is exposed through Unwrap.
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the kind sentinel.
func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the kind sentinel.
func (e *Error) Kind() error {
	return e.kind
}

func newf(kind error, format string, args ...any) error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// NotAuthenticated reports a call without caller identity.
func NotAuthenticated() error {
	return newf(ErrNotAuthenticated, "not authenticated")
}

// Unauthorized reports a caller acting on a resource it does not own.
func Unauthorized(format string, args ...any) error {
	return newf(ErrUnauthorized, format, args...)
}

// NotFound reports a missing or soft-deleted entity.
func NotFound(format string, args ...any) error {
	return newf(ErrNotFound, format, args...)
}

// Validation reports malformed or out-of-range input.
func Validation(format string, args ...any) error {
	return newf(ErrValidation, format, args...)
}

// LimitExceeded reports a quota violation.
func LimitExceeded(format string, args ...any) error {
	return newf(ErrLimitExceeded, format, args...)
}

// InvalidState reports a state machine transition from the wrong state.
func InvalidState(format string, args ...any) error {
	return newf(ErrInvalidState, format, args...)
}

// KindOf returns the kind sentinel wrapped by err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotAuthenticated,
		ErrUnauthorized,
		ErrNotFound,
		ErrValidation,
		ErrLimitExceeded,
		ErrInvalidState,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
