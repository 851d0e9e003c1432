package stratcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	gomemcache "github.com/bradfitz/gomemcache/memcache"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratcache/config"
	"github.com/unkn0wn-root/stratcache/provider/memcache"
)

// Selector owns the active strategy of a process (or of a test).
//
// Current is a single atomic load, so a caller that captures the returned
// Strategy runs its whole operation against one instance even if another
// goroutine activates a different backend meanwhile. Instances are
// memoized per identifier; replaced strategies stay open until Close.
type Selector struct {
	reg       *Registry
	ns        *Namespace
	log       Logger
	hooks     Hooks
	newClient func(*goredis.UniversalOptions) goredis.UniversalClient
	newMemc   func(servers []string) memcache.Client

	active atomic.Pointer[activeStrategy]

	mu        sync.Mutex // guards instances
	instances map[Identifier]Strategy
}

type activeStrategy struct {
	id Identifier
	s  Strategy
}

type Option func(*Selector)

// WithRegistry uses r instead of a fresh NewRegistry().
func WithRegistry(r *Registry) Option {
	return func(s *Selector) {
		if r != nil {
			s.reg = r
		}
	}
}

// WithNamespace uses ns instead of a fresh NewNamespace(). A namespace
// belongs to one selector: NewSelector panics if ns already has one.
func WithNamespace(ns *Namespace) Option {
	return func(s *Selector) {
		if ns != nil {
			s.ns = ns
		}
	}
}

func WithLogger(l Logger) Option {
	return func(s *Selector) { s.log = coalesce[Logger](l, NopLogger{}) }
}

func WithHooks(h Hooks) Option {
	return func(s *Selector) { s.hooks = coalesce[Hooks](h, NopHooks{}) }
}

// WithRedisClientFactory replaces goredis.NewUniversalClient for strategies
// built by ActivateFromConnectionString.
func WithRedisClientFactory(f func(*goredis.UniversalOptions) goredis.UniversalClient) Option {
	return func(s *Selector) {
		if f != nil {
			s.newClient = f
		}
	}
}

// WithMemcacheClientFactory replaces the gomemcache client constructor for
// strategies built by ActivateFromConnectionString.
func WithMemcacheClientFactory(f func(servers []string) memcache.Client) Option {
	return func(s *Selector) {
		if f != nil {
			s.newMemc = f
		}
	}
}

func newMemcacheClient(servers []string) memcache.Client {
	return gomemcache.New(servers...)
}

func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		log:       NopLogger{},
		hooks:     NopHooks{},
		newClient: goredis.NewUniversalClient,
		newMemc:   newMemcacheClient,
		instances: make(map[Identifier]Strategy),
	}
	for _, o := range opts {
		o(s)
	}
	if s.reg == nil {
		s.reg = NewRegistry()
	}
	if s.ns == nil {
		s.ns = NewNamespace()
	}
	owned := s.ns.claim(func(ns string) {
		s.log.Info("namespace sealed", Fields{"ns": ns})
		s.hooks.NamespaceSealed(ns)
	})
	if !owned {
		panic("stratcache: namespace is already owned by another selector")
	}
	return s
}

func (s *Selector) Registry() *Registry { return s.reg }

func (s *Selector) Namespace() *Namespace { return s.ns }

// instance returns the memoized strategy for id, building it on first use.
func (s *Selector) instance(id Identifier) (Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.instances[id]; ok {
		return st, nil
	}
	f, err := s.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	st, err := f(s.ns)
	if err != nil {
		return nil, fmt.Errorf("stratcache: build %s: %w", id, err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrConfiguration, id)
	}
	s.instances[id] = st
	return st, nil
}

// Activate makes id the active strategy. The first call seals the
// namespace and locks the registry.
func (s *Selector) Activate(id Identifier) error {
	st, err := s.instance(id)
	if err != nil {
		return err
	}
	s.ns.Seal()
	s.reg.Lock()

	var from Identifier
	if prev := s.active.Swap(&activeStrategy{id: id, s: st}); prev != nil {
		from = prev.id
	}
	s.log.Info("strategy activated", Fields{"from": string(from), "to": string(id)})
	s.hooks.StrategyActivated(from, id)
	return nil
}

// Current returns the active strategy. When nothing was activated it
// installs InMemory without locking the registry. It panics only if the
// InMemory factory itself fails.
func (s *Selector) Current() Strategy {
	if a := s.active.Load(); a != nil {
		return a.s
	}
	st, err := s.instance(InMemory)
	if err != nil {
		panic(fmt.Sprintf("stratcache: default strategy: %v", err))
	}
	s.ns.Seal()
	if s.active.CompareAndSwap(nil, &activeStrategy{id: InMemory, s: st}) {
		s.log.Debug("default strategy installed", Fields{"to": string(InMemory)})
		s.hooks.StrategyActivated("", InMemory)
	}
	return s.active.Load().s
}

func (s *Selector) CurrentIdentifier() Identifier {
	s.Current()
	return s.active.Load().id
}

// Override returns the memoized instance for id without activating it,
// for code paths that need a specific backend regardless of the default.
func (s *Selector) Override(id Identifier) (Strategy, error) {
	return s.instance(id)
}

// ActivateFromConnectionString registers (if needed) and activates the
// strategy kind configured by conn: a Redis connection string for
// KeyValueStore and HashStore, a server list for Memcached. Other kinds
// must already be registered; their conn is not interpreted. A blank or
// placeholder conn is not an error: it returns false and leaves the
// active strategy unchanged.
func (s *Selector) ActivateFromConnectionString(kind Identifier, conn string) (bool, error) {
	if !config.IsConfigured(conn) {
		s.skip(kind, "placeholder")
		return false, nil
	}
	f, err := s.connFactory(kind, conn)
	switch {
	case err == nil:
		if !s.reg.IsRegistered(kind) {
			if err := s.reg.Register(kind, f); err != nil && !errors.Is(err, ErrDuplicateStrategy) {
				return false, err
			}
		}
	case errors.Is(err, ErrNotFound) && s.reg.IsRegistered(kind):
	default:
		return false, err
	}
	if err := s.Activate(kind); err != nil {
		return false, err
	}
	return true, nil
}

// connFactory parses conn for a built-in kind. Kinds without connection
// string support yield ErrNotFound.
func (s *Selector) connFactory(kind Identifier, conn string) (Factory, error) {
	sopts := []StrategyOption{WithStrategyLogger(s.log), WithStrategyHooks(s.hooks)}
	switch kind {
	case KeyValueStore, HashStore:
		o, err := config.ParseRedis(conn)
		if err != nil {
			return nil, err
		}
		newClient := func() goredis.UniversalClient { return s.newClient(o.Universal()) }
		if kind == HashStore {
			return HashFactory(newClient, sopts...), nil
		}
		return KeyValueFactory(newClient, sopts...), nil
	case Memcached:
		servers, err := config.ParseMemcached(conn)
		if err != nil {
			return nil, err
		}
		return MemcachedFactory(func() memcache.Client { return s.newMemc(servers) }, sopts...), nil
	default:
		return nil, fmt.Errorf("%w: no connection string support for %s", ErrNotFound, kind)
	}
}

func (s *Selector) skip(kind Identifier, reason string) {
	s.log.Info("strategy activation skipped", Fields{"kind": string(kind), "reason": reason})
	s.hooks.ActivationSkipped(kind, reason)
}

// Bootstrap applies settings: the namespace first, then the KeyValueStore,
// HashStore and Memcached backends in that order. The first backend that
// activates wins; with none configured InMemory stays active. It returns
// the active identifier.
func (s *Selector) Bootstrap(settings config.Settings) (Identifier, error) {
	if settings.Namespace != "" {
		if err := s.ns.Set(settings.Namespace); err != nil {
			return "", err
		}
	}
	candidates := []struct {
		id      Identifier
		backend config.Backend
	}{
		{KeyValueStore, settings.KeyValue},
		{HashStore, settings.Hash},
		{Memcached, settings.Memcached},
	}
	for _, c := range candidates {
		if !c.backend.Enabled {
			s.skip(c.id, "disabled")
			continue
		}
		ok, err := s.ActivateFromConnectionString(c.id, c.backend.Configuration)
		if err != nil {
			return "", fmt.Errorf("stratcache: bootstrap %s: %w", c.id, err)
		}
		if ok {
			return c.id, nil
		}
	}
	return s.CurrentIdentifier(), nil
}

// Close closes every instantiated strategy and forgets them. A later
// Current installs a fresh InMemory strategy.
func (s *Selector) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, st := range s.instances {
		if err := st.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(s.instances, id)
	}
	s.active.Store(nil)
	return errors.Join(errs...)
}
