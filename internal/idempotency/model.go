// Package idempotency stores responses of non-repeatable requests so that a
// retried request carrying the same Idempotency-Key gets the original answer.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned when no response is stored for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when a response is already stored for a key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for a client-supplied key.
const MaxKeyLength = 64

// DefaultTTL is how long a stored response is replayed.
const DefaultTTL = 24 * time.Hour

// Record is a stored response.
type Record struct {
	Key          string    `json:"key"`
	Route        string    `json:"route"`
	StatusCode   int       `json:"status_code"`
	Body         string    `json:"body"`
	ResponseHash string    `json:"response_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists records. Put must be atomic: of two concurrent Puts for
// the same key exactly one succeeds and the other gets ErrKeyExists.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ScopedKey namespaces a client key by caller and route so one user cannot
// replay another user's response.
func ScopedKey(userID, route, key string) string {
	return userID + ":" + route + ":" + key
}

// ComputeResponseHash returns the hex SHA-256 of body.
func ComputeResponseHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
