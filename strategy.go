package stratcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/stratcache/internal/util"
	"github.com/unkn0wn-root/stratcache/provider"
)

// StrategyOption configures a strategy built by NewStrategy.
type StrategyOption func(*strategy)

// WithStrategyLogger sets the logger for backend failures. Nil disables it.
func WithStrategyLogger(l Logger) StrategyOption {
	return func(s *strategy) { s.log = coalesce[Logger](l, NopLogger{}) }
}

// WithStrategyHooks sets the hooks notified of backend failures.
func WithStrategyHooks(h Hooks) StrategyOption {
	return func(s *strategy) { s.hooks = coalesce[Hooks](h, NopHooks{}) }
}

// strategy is the namespaced Strategy over a provider. It is the only
// place logical keys are turned into storage keys.
type strategy struct {
	id    Identifier
	p     provider.Provider
	ns    *Namespace
	log   Logger
	hooks Hooks
}

var _ Strategy = (*strategy)(nil)

// NewStrategy returns a Strategy named id that stores "<ns>:<key>" in p.
// The namespace is resolved (and sealed) on the first operation.
// Provider errors are returned as *BackendError.
func NewStrategy(id Identifier, p provider.Provider, ns *Namespace, opts ...StrategyOption) Strategy {
	s := &strategy{id: id, p: p, ns: ns, log: NopLogger{}, hooks: NopHooks{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *strategy) Identifier() Identifier { return s.id }

func (s *strategy) key(k string) string { return util.Join(s.ns.Resolve(), k) }

func (s *strategy) fail(op, key string, err error) error {
	if errors.Is(err, provider.ErrKeyTooLong) {
		return fmt.Errorf("stratcache: %s %s: %w", s.id, op, err)
	}
	be := &BackendError{Strategy: s.id, Op: op, Key: key, Err: err}
	s.hooks.BackendError(s.id, op, err)
	s.log.Warn("backend operation failed", Fields{"strategy": string(s.id), "op": op, "err": err})
	return be
}

func (s *strategy) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := s.p.Get(ctx, s.key(key))
	if err != nil {
		return nil, false, s.fail("get", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *strategy) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if value == nil {
		value = []byte{}
	}
	if err := s.p.Set(ctx, s.key(key), value, ttl); err != nil {
		return s.fail("set", key, err)
	}
	return nil
}

func (s *strategy) Remove(ctx context.Context, key string) (bool, error) {
	ok, err := s.p.Del(ctx, s.key(key))
	if err != nil {
		return false, s.fail("remove", key, err)
	}
	return ok, nil
}

func (s *strategy) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.p.Exists(ctx, s.key(key))
	if err != nil {
		return false, s.fail("exists", key, err)
	}
	return ok, nil
}

func (s *strategy) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.p.Expire(ctx, s.key(key), ttl)
	if err != nil {
		return false, s.fail("expire", key, err)
	}
	return ok, nil
}

func (s *strategy) ClearNamespace(ctx context.Context) error {
	ns := s.ns.Resolve()
	n, err := s.p.DelPrefix(ctx, util.Prefix(ns))
	if err != nil {
		return s.fail("clear", "", err)
	}
	s.log.Info("namespace cleared", Fields{"strategy": string(s.id), "ns": ns, "removed": n})
	return nil
}

func (s *strategy) Close(ctx context.Context) error {
	if err := s.p.Close(ctx); err != nil {
		return s.fail("close", "", err)
	}
	return nil
}
