// Package kvstore provides the shared key-value state used by the CSRF token
// store and the abuse-rate limiter. Implementations are swappable between a
// process-local map and Redis without changing call sites.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrContention is returned when an atomic update could not be applied
// because the key kept changing underneath it.
var ErrContention = errors.New("kvstore: too much contention on key")

// UpdateFunc receives the current value (if any) and returns the value to
// store with its TTL. A nil next deletes the key. A ttl <= 0 means no expiry.
// The function may be called more than once and must be free of side effects.
type UpdateFunc func(current []byte, exists bool) (next []byte, ttl time.Duration, err error)

// Store is a key-value store with per-key TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Update applies fn atomically with respect to other writers of key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Incr adds one to the counter at key and returns the new count with
	// the time left before it resets. The first increment starts a window
	// of the given length.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}
