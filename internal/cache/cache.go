// Package cache provides a small keyed cache used to serve the latest
// analysis snapshots without a storage round trip.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache stores JSON-encodable values under string keys with a TTL.
type Cache interface {
	// Set stores value under key. A zero expiration means no expiry.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Get unmarshals the stored value into dest. Returns ErrCacheMiss
	// when the key is absent or expired.
	Get(ctx context.Context, key string, dest any) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports whether any of the keys is present.
	Exists(ctx context.Context, keys ...string) (bool, error)

	// Close releases the underlying resources.
	Close() error
}
