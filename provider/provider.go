// Package provider defines the physical store abstraction behind every
// stratcache strategy.
//
// Providers see storage keys only ("<ns>:<key>"); the namespace prefixing
// is done by the strategy layer, never by a provider. Values must be
// byte-for-byte transparent: Get returns exactly the []byte passed to Set,
// and an empty value is a hit, not a miss.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrKeyTooLong is returned by Set when a storage key exceeds what the
// backend can address. It is a caller error, not a backend failure.
var ErrKeyTooLong = errors.New("provider: key too long")

// Provider is a byte store with per-entry TTLs.
// Implementations must be safe for concurrent use and must not serialize
// unrelated keys behind a single lock.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key and reports whether it existed.
	Del(ctx context.Context, key string) (bool, error)

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire replaces the TTL of an existing key (ttl <= 0 removes it).
	// Returns false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// DelPrefix removes every key starting with prefix and returns how
	// many were removed.
	DelPrefix(ctx context.Context, prefix string) (int, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
