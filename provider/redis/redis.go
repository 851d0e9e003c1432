// Package redis is the KeyValueStore provider: one Redis string per entry,
// with native Redis expiry.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratcache/internal/rscan"
	"github.com/unkn0wn-root/stratcache/internal/util"
	pr "github.com/unkn0wn-root/stratcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	scanCount   int64
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool  // set true only if this provider exclusively owns the client
	ScanCount   int64 // SCAN COUNT hint for DelPrefix; 0 => rscan.DefaultCount
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient, scanCount: cfg.ScanCount}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) Del(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl > 0 {
		return p.rdb.Expire(ctx, key, ttl).Result()
	}
	// PERSIST answers 0 both for a missing key and for a key without TTL
	if _, err := p.rdb.Persist(ctx, key).Result(); err != nil {
		return false, err
	}
	return p.Exists(ctx, key)
}

func (p *Redis) DelPrefix(ctx context.Context, prefix string) (int, error) {
	return rscan.Delete(ctx, p.rdb, util.EscapeGlob(prefix)+"*", p.scanCount)
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
