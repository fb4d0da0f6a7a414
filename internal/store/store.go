// Package store defines the expiring key-value store the job pipeline keeps
// its locks, markers and results in.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a shared key-value store with per-key time-to-live. Every method
// is a single-key atomic operation.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value. A ttl <= 0
	// stores the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent or expired, and reports
	// whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// CompareAndDelete removes key only if its current value equals value,
	// and reports whether it did.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
