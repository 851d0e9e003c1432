package stratcache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/stratcache/codec"
)

// Object is typed access to whatever strategy a selector has active. Each
// call resolves the strategy once, so a concurrent activation never splits
// one operation across two backends.
type Object[V any] struct {
	sel        *Selector
	codec      codec.Codec[V]
	defaultTTL time.Duration
}

type ObjectOptions[V any] struct {
	Selector   *Selector      // nil => Default
	Codec      codec.Codec[V] // required
	DefaultTTL time.Duration  // used by Set; 0 => no expiry
}

func NewObject[V any](opts ObjectOptions[V]) (*Object[V], error) {
	if opts.Codec == nil {
		return nil, fmt.Errorf("%w: codec is required", ErrConfiguration)
	}
	return &Object[V]{
		sel:        coalesce(opts.Selector, Default),
		codec:      opts.Codec,
		defaultTTL: opts.DefaultTTL,
	}, nil
}

// Get returns the decoded value. A value that no longer decodes is removed
// and reported as a miss.
func (o *Object[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	st := o.sel.Current()
	raw, ok, err := st.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := o.codec.Decode(raw)
	if err != nil {
		o.sel.log.Warn("dropping undecodable value", Fields{"strategy": string(st.Identifier()), "key": key, "err": err})
		if _, derr := st.Remove(ctx, key); derr != nil {
			return zero, false, derr
		}
		return zero, false, nil
	}
	return v, true, nil
}

func (o *Object[V]) Set(ctx context.Context, key string, value V) error {
	return o.SetTTL(ctx, key, value, o.defaultTTL)
}

func (o *Object[V]) SetTTL(ctx context.Context, key string, value V, ttl time.Duration) error {
	b, err := o.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("stratcache: encode %q: %w", key, err)
	}
	return o.sel.Current().Set(ctx, key, b, ttl)
}

// GetOrSet returns the cached value or stores the result of load.
// Concurrent misses may call load more than once; the last write wins.
func (o *Object[V]) GetOrSet(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok, err := o.Get(ctx, key); err != nil || ok {
		return v, err
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	return v, o.Set(ctx, key, v)
}

func (o *Object[V]) Remove(ctx context.Context, key string) (bool, error) {
	return o.sel.Current().Remove(ctx, key)
}

func (o *Object[V]) Exists(ctx context.Context, key string) (bool, error) {
	return o.sel.Current().Exists(ctx, key)
}
