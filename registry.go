package stratcache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/stratcache/provider/memory"
)

// DefaultSweepInterval is how often the built-in InMemory strategy drops
// expired entries.
const DefaultSweepInterval = time.Minute

// Registry maps identifiers to factories. It accepts registrations until
// the first explicit activation locks it.
type Registry struct {
	mu        sync.RWMutex
	factories map[Identifier]Factory
	locked    bool
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	memory memory.Config
}

// WithMemoryConfig overrides the configuration of the built-in InMemory
// strategy.
func WithMemoryConfig(cfg memory.Config) RegistryOption {
	return func(c *registryConfig) { c.memory = cfg }
}

// NewRegistry returns an unlocked registry with InMemory registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{memory: memory.Config{SweepInterval: DefaultSweepInterval}}
	for _, o := range opts {
		o(&cfg)
	}
	return &Registry{
		factories: map[Identifier]Factory{InMemory: MemoryFactory(cfg.memory)},
	}
}

// Register adds f under id.
func (r *Registry) Register(id Identifier, f Factory) error {
	if id == "" {
		return fmt.Errorf("%w: empty strategy identifier", ErrConfiguration)
	}
	if f == nil {
		return fmt.Errorf("%w: nil factory for %s", ErrConfiguration, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryLocked, id)
	}
	if _, dup := r.factories[id]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, id)
	}
	r.factories[id] = f
	return nil
}

func (r *Registry) Lookup(id Identifier) (Factory, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return f, nil
}

func (r *Registry) IsRegistered(id Identifier) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// Identifiers returns the registered identifiers in sorted order.
func (r *Registry) Identifiers() []Identifier {
	r.mu.RLock()
	out := make([]Identifier, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lock closes the registry to further registrations. Idempotent.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

func (r *Registry) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}
