// Package validate provides input validation and sanitization for
// user-supplied text and media references.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // 0 = no minimum
	MaxLength      int            // 0 = no maximum
	AllowedPattern *regexp.Regexp // optional
	AllowEmpty     bool
	TrimSpace      bool
}

// String validates s against constraints and returns the (optionally trimmed) value.
// Lengths are counted in runes.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if !c.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if c.MinLength > 0 && length < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, c.MaxLength)
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}
	return s, nil
}

// SanitizeString validates s and escapes HTML special characters.
func SanitizeString(s string, c StringConstraints) (string, error) {
	v, err := String(s, c)
	if err != nil {
		return "", err
	}
	return html.EscapeString(v), nil
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

// Username validates a handle: 3-30 chars of lowercase letters, digits, underscore and period.
// The input is lowercased first.
func Username(s string) (string, error) {
	return String(strings.ToLower(s), StringConstraints{
		MinLength:      3,
		MaxLength:      30,
		AllowedPattern: usernamePattern,
		TrimSpace:      true,
	})
}

// DisplayName validates a profile display name (1-50 chars).
func DisplayName(s string) (string, error) {
	return SanitizeString(s, StringConstraints{MinLength: 1, MaxLength: 50, TrimSpace: true})
}

// Bio validates an optional profile bio (max 300 chars).
func Bio(s string) (string, error) {
	return SanitizeString(s, StringConstraints{MaxLength: 300, AllowEmpty: true, TrimSpace: true})
}

// Caption validates an optional video description (max 2200 chars).
func Caption(s string) (string, error) {
	return SanitizeString(s, StringConstraints{MaxLength: 2200, AllowEmpty: true, TrimSpace: true})
}

// CommentContent validates comment text (1-500 chars).
func CommentContent(s string) (string, error) {
	return SanitizeString(s, StringConstraints{MinLength: 1, MaxLength: 500, TrimSpace: true})
}

// TipMessage validates an optional message attached to a tip (max 200 chars).
func TipMessage(s string) (string, error) {
	return SanitizeString(s, StringConstraints{MaxLength: 200, AllowEmpty: true, TrimSpace: true})
}
