package stratcache

import (
	"context"
	"time"
)

// Identifier names a cache strategy. External packages add variants by
// declaring their own values and registering a Factory for them.
type Identifier string

const (
	InMemory      Identifier = "InMemory"
	KeyValueStore Identifier = "KeyValueStore"
	HashStore     Identifier = "HashStore"
	Memcached     Identifier = "Memcached"
)

func (id Identifier) String() string { return string(id) }

// Strategy is the uniform cache contract every backend variant implements.
// Keys are logical keys; the strategy stores them as "<namespace>:<key>".
type Strategy interface {
	Identifier() Identifier

	// Get returns (value, true, nil) on hit, (nil, false, nil) when absent.
	// An empty stored value is a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. The last write wins.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes key and reports whether it existed.
	Remove(ctx context.Context, key string) (bool, error)

	Exists(ctx context.Context, key string) (bool, error)

	// Expire replaces the TTL of an existing key; ttl <= 0 clears it.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ClearNamespace removes every entry of the resolved namespace and
	// nothing else.
	ClearNamespace(ctx context.Context) error

	Close(ctx context.Context) error
}

// Factory builds the singleton Strategy for one identifier. It receives the
// namespace resolver of the selector that activates it.
type Factory func(ns *Namespace) (Strategy, error)
