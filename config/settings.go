// Package config resolves cache backend configuration supplied by the
// hosting environment.
//
// Connection strings are either a real descriptor or the placeholder text
// that default configuration files ship with. The placeholder means "left
// unconfigured" and never activates a backend.
//
// Environment Variables:
//   - STRATCACHE_NAMESPACE: cache namespace (default: DefaultCache)
//   - STRATCACHE_REDIS_CONFIGURATION: KeyValueStore connection string
//   - STRATCACHE_REDIS_ENABLED: explicit switch for KeyValueStore (default: true)
//   - STRATCACHE_REDIS_HASH_CONFIGURATION: HashStore connection string
//   - STRATCACHE_REDIS_HASH_ENABLED: explicit switch for HashStore (default: true)
//   - STRATCACHE_MEMCACHED_CONFIGURATION: Memcached server list
//   - STRATCACHE_MEMCACHED_ENABLED: explicit switch for Memcached (default: true)
//   - STRATCACHE_MEMORY_SWEEP: sweep interval for expired in-memory entries (default: 1m, 0 disables)
//   - LOG_LEVEL: logging level (default: info)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Placeholders default configuration files carry for unconfigured backends.
const (
	RedisPlaceholder     = "Redis配置"
	MemcachedPlaceholder = "Memcached配置"
)

// IsConfigured reports whether s is a real connection string, i.e. neither
// blank nor a placeholder.
func IsConfigured(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != RedisPlaceholder && s != MemcachedPlaceholder
}

// Backend is one distributed backend's configuration input.
type Backend struct {
	Configuration string // connection string or a placeholder
	Enabled       bool   // explicit off switch, independent of the string
}

// Configured reports whether the backend should be activated.
func (b Backend) Configured() bool {
	return b.Enabled && IsConfigured(b.Configuration)
}

// Settings holds every value the host reads to set up caching.
type Settings struct {
	Namespace   string        // empty keeps the built-in default
	KeyValue    Backend       // Redis, one string per entry
	Hash        Backend       // Redis, hash fields
	Memcached   Backend       // server list
	MemorySweep time.Duration // expired-entry sweep for the in-memory store
	LogLevel    string
}

// Load reads Settings from the environment. Unset variables fall back to
// the shipped defaults, where every backend string is its placeholder.
func Load() Settings {
	return Settings{
		Namespace: getEnv("STRATCACHE_NAMESPACE", ""),
		KeyValue: Backend{
			Configuration: getEnv("STRATCACHE_REDIS_CONFIGURATION", RedisPlaceholder),
			Enabled:       getBoolEnv("STRATCACHE_REDIS_ENABLED", true),
		},
		Hash: Backend{
			Configuration: getEnv("STRATCACHE_REDIS_HASH_CONFIGURATION", RedisPlaceholder),
			Enabled:       getBoolEnv("STRATCACHE_REDIS_HASH_ENABLED", true),
		},
		Memcached: Backend{
			Configuration: getEnv("STRATCACHE_MEMCACHED_CONFIGURATION", MemcachedPlaceholder),
			Enabled:       getBoolEnv("STRATCACHE_MEMCACHED_ENABLED", true),
		},
		MemorySweep: getDurationEnv("STRATCACHE_MEMORY_SWEEP", time.Minute),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts strconv.ParseBool spellings; anything else yields
// defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}
