// Package memcache is the Memcached provider.
//
// Memcached cannot enumerate keys, so a namespace is cleared by
// generation: the storage key "ns:key" lives under "ns:<gen>:key", where
// <gen> is a counter kept under the bare key "ns". DelPrefix bumps the
// counter and entries of older generations age out of the server's LRU.
// Keys memcached cannot carry (over 250 bytes, whitespace or control
// bytes) are stored under a SHA-256 digest.
//
// Expiry uses memcached's own clock: relative seconds up to 30 days,
// absolute unix seconds beyond that, capped at 2038-01-19 (int32).
package memcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/stratcache/internal/util"
	pr "github.com/unkn0wn-root/stratcache/provider"
)

var ErrNilClient = errors.New("memcache provider: nil client")

// Client is the subset of *memcache.Client the provider uses.
type Client interface {
	Get(key string) (*mc.Item, error)
	Set(item *mc.Item) error
	Add(item *mc.Item) error
	Delete(key string) error
	Touch(key string, seconds int32) error
	Increment(key string, delta uint64) (uint64, error)
}

var _ Client = (*mc.Client)(nil)

const (
	maxKeyLen = 250
	// memcached reads larger expirations as absolute unix time
	relativeLimit = 30 * 24 * time.Hour
)

type Memcache struct {
	c   Client
	now func() time.Time
}

var _ pr.Provider = (*Memcache)(nil)

type Config struct {
	// Client is owned by the provider: Close closes it when it implements
	// io.Closer.
	Client Client
}

func New(cfg Config) (*Memcache, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Memcache{c: cfg.Client, now: time.Now}, nil
}

// legal reports whether memcached accepts k as a key.
func legal(k string) bool {
	if len(k) == 0 || len(k) > maxKeyLen {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] <= ' ' || k[i] == 0x7f {
			return false
		}
	}
	return true
}

func digest(k string) string {
	sum := sha256.Sum256([]byte(k))
	return "#" + hex.EncodeToString(sum[:])
}

func genKey(ns string) string {
	if legal(ns) {
		return ns
	}
	return digest("gen" + util.Sep + ns)
}

// Expiration converts ttl to memcached's exptime at now.
func Expiration(now time.Time, ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if secs <= int64(relativeLimit/time.Second) {
		return int32(secs)
	}
	abs := now.Unix() + secs
	if abs > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(abs)
}

// generation returns the current generation of ns, seeding it when the
// counter is missing (first use or evicted). Seeds are time based so a
// re-seeded namespace never revives an older generation.
func (p *Memcache) generation(ns string) (string, error) {
	gk := genKey(ns)
	it, err := p.c.Get(gk)
	if err == nil {
		return string(it.Value), nil
	}
	if !errors.Is(err, mc.ErrCacheMiss) {
		return "", err
	}
	seed := strconv.FormatInt(p.now().UnixNano(), 10)
	err = p.c.Add(&mc.Item{Key: gk, Value: []byte(seed)})
	switch {
	case err == nil:
		return seed, nil
	case errors.Is(err, mc.ErrNotStored):
		it, err := p.c.Get(gk)
		if err != nil {
			return "", err
		}
		return string(it.Value), nil
	default:
		return "", err
	}
}

// locate maps a storage key to the memcached key of its current generation.
func (p *Memcache) locate(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ns, rest, ok := strings.Cut(key, util.Sep)
	if !ok {
		return "", errors.New("memcache provider: storage key has no namespace")
	}
	gen, err := p.generation(ns)
	if err != nil {
		return "", err
	}
	k := ns + util.Sep + gen + util.Sep + rest
	if !legal(k) {
		return digest(k), nil
	}
	return k, nil
}

func (p *Memcache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k, err := p.locate(ctx, key)
	if err != nil {
		return nil, false, err
	}
	it, err := p.c.Get(k)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if it.Value == nil {
		return []byte{}, true, nil
	}
	return it.Value, true, nil
}

func (p *Memcache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k, err := p.locate(ctx, key)
	if err != nil {
		return err
	}
	return p.c.Set(&mc.Item{Key: k, Value: value, Expiration: Expiration(p.now(), ttl)})
}

func (p *Memcache) Del(ctx context.Context, key string) (bool, error) {
	k, err := p.locate(ctx, key)
	if err != nil {
		return false, err
	}
	err = p.c.Delete(k)
	if errors.Is(err, mc.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

func (p *Memcache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

// Expire uses TOUCH; exptime 0 makes the entry permanent.
func (p *Memcache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	k, err := p.locate(ctx, key)
	if err != nil {
		return false, err
	}
	err = p.c.Touch(k, Expiration(p.now(), ttl))
	if errors.Is(err, mc.ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

// DelPrefix retires the namespace's generation. prefix must be "<ns>:".
// The number of entries retired is unknown to memcached; it returns 0.
func (p *Memcache) DelPrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !strings.HasSuffix(prefix, util.Sep) || strings.Count(prefix, util.Sep) != 1 {
		return 0, fmt.Errorf("memcache provider: prefix %q must be a bare namespace followed by %q", prefix, util.Sep)
	}
	gk := genKey(strings.TrimSuffix(prefix, util.Sep))
	for attempt := 0; attempt < 2; attempt++ {
		_, err := p.c.Increment(gk, 1)
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, mc.ErrCacheMiss) {
			return 0, err
		}
		seed := strconv.FormatInt(p.now().UnixNano(), 10)
		err = p.c.Add(&mc.Item{Key: gk, Value: []byte(seed)})
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, mc.ErrNotStored) {
			return 0, err
		}
		// another process seeded it first; bump that generation
	}
	return 0, errors.New("memcache provider: generation counter keeps disappearing")
}

// Close closes the client when it supports it.
func (p *Memcache) Close(context.Context) error {
	if c, ok := p.c.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
