// Package redishash is the HashStore provider: entries are fields of Redis
// hashes.
//
// A storage key is split at its last ':' into hash key and field, so
// "ns:user:1" lives in hash "ns:user" under field "1" and "ns:a" lives in
// hash "ns" under field "a". Redis hashes have no per-field expiry, so
// values are wrapped in a frame with an absolute deadline; expired fields
// are removed when touched.
package redishash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratcache/internal/rscan"
	"github.com/unkn0wn-root/stratcache/internal/util"
	"github.com/unkn0wn-root/stratcache/internal/wire"
	pr "github.com/unkn0wn-root/stratcache/provider"
)

var ErrNilClient = errors.New("redishash provider: nil client")

type Hash struct {
	rdb         goredis.UniversalClient
	closeClient bool
	scanCount   int64
	now         func() time.Time
}

var _ pr.Provider = (*Hash)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool  // set true only if this provider exclusively owns the client
	ScanCount   int64 // SCAN COUNT hint for DelPrefix; 0 => rscan.DefaultCount
}

func New(cfg Config) (*Hash, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Hash{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		scanCount:   cfg.ScanCount,
		now:         time.Now,
	}, nil
}

// Locate returns the hash key and field that hold storageKey.
func Locate(storageKey string) (hash, field string) {
	return util.SplitLast(storageKey)
}

// load fetches the live frame for key. Expired or foreign fields are
// deleted and reported as a miss.
func (p *Hash) load(ctx context.Context, key string) (wire.Entry, []byte, bool, error) {
	h, f := Locate(key)
	raw, err := p.rdb.HGet(ctx, h, f).Bytes()
	if err == goredis.Nil {
		return wire.Entry{}, nil, false, nil
	}
	if err != nil {
		return wire.Entry{}, nil, false, err
	}
	e, derr := wire.Decode(raw)
	if derr != nil || e.Expired(p.now()) {
		if err := p.rdb.HDel(ctx, h, f).Err(); err != nil {
			return wire.Entry{}, nil, false, err
		}
		return wire.Entry{}, nil, false, nil
	}
	return e, raw, true, nil
}

func (p *Hash) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, _, ok, err := p.load(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return e.Payload, true, nil
}

func (p *Hash) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	h, f := Locate(key)
	return p.rdb.HSet(ctx, h, f, wire.Encode(wire.Deadline(p.now(), ttl), value)).Err()
}

func (p *Hash) Del(ctx context.Context, key string) (bool, error) {
	_, _, ok, err := p.load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	h, f := Locate(key)
	n, err := p.rdb.HDel(ctx, h, f).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Hash) Exists(ctx context.Context, key string) (bool, error) {
	_, _, ok, err := p.load(ctx, key)
	return ok, err
}

// Expire rewrites the field with a new deadline. Not atomic with respect
// to a concurrent Set of the same key; the last writer wins.
func (p *Hash) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	_, raw, ok, err := p.load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	b, err := wire.Reframe(raw, wire.Deadline(p.now(), ttl))
	if err != nil {
		return false, err
	}
	h, f := Locate(key)
	if err := p.rdb.HSet(ctx, h, f, b).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// DelPrefix removes the hashes holding keys under prefix and returns the
// number of hashes removed. prefix must end with the key separator: the
// hash layout can only drop whole hashes.
func (p *Hash) DelPrefix(ctx context.Context, prefix string) (int, error) {
	if !strings.HasSuffix(prefix, util.Sep) {
		return 0, fmt.Errorf("redishash: prefix %q must end with %q", prefix, util.Sep)
	}
	head := strings.TrimSuffix(prefix, util.Sep)
	n, err := p.rdb.Unlink(ctx, head).Result()
	if err != nil {
		return 0, err
	}
	m, err := rscan.Delete(ctx, p.rdb, util.EscapeGlob(prefix)+"*", p.scanCount)
	return int(n) + m, err
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Hash) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
