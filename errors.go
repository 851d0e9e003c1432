package stratcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/stratcache/config"
	"github.com/unkn0wn-root/stratcache/provider"
)

var (
	// ErrConfiguration reports an invalid or out-of-order configuration
	// change, such as setting the namespace after it was sealed.
	ErrConfiguration = errors.New("stratcache: configuration error")

	// ErrDuplicateStrategy is returned when an identifier is registered twice.
	ErrDuplicateStrategy = errors.New("stratcache: strategy already registered")

	// ErrRegistryLocked is returned when registering after the first
	// explicit activation.
	ErrRegistryLocked = errors.New("stratcache: registry locked")

	// ErrNotFound is returned when activating an unregistered identifier.
	ErrNotFound = errors.New("stratcache: strategy not registered")

	// ErrInvalidConfiguration is returned for malformed connection strings.
	ErrInvalidConfiguration = config.ErrInvalidConfiguration

	// ErrKeyTooLong is returned by Set when the namespaced key exceeds the
	// backend's key size limit (64 KiB - 1 for InMemory).
	ErrKeyTooLong = provider.ErrKeyTooLong

	// ErrBackendUnavailable is matched by every runtime failure of a
	// distributed backend.
	ErrBackendUnavailable = errors.New("stratcache: backend unavailable")
)

// BackendError is a failed operation against the physical store of a
// strategy. It matches ErrBackendUnavailable and the client's own error.
type BackendError struct {
	Strategy Identifier
	Op       string
	Key      string // logical key; empty for namespace-wide operations
	Err      error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("stratcache: %s %s: %v", e.Strategy, e.Op, e.Err)
	}
	return fmt.Sprintf("stratcache: %s %s %q: %v", e.Strategy, e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.Err}
}
