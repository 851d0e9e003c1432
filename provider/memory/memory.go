// Package memory is the in-process provider behind the InMemory strategy.
//
// It is backed by allegro/bigcache: entries live in sharded byte arenas,
// each shard with its own lock. bigcache has no per-entry TTL, so values
// are stored in a wire frame carrying an absolute deadline and expired
// entries are dropped lazily on access (and by the optional sweeper).
// The store never evicts live entries; capacity is bounded only by
// process memory.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/stratcache/internal/wire"
	pr "github.com/unkn0wn-root/stratcache/provider"
)

// lifeWindow keeps bigcache's own age-based eviction out of the way.
const lifeWindow = 100 * 365 * 24 * time.Hour

// MaxKeyLen is the longest storage key bigcache records intact; its entry
// header holds the key length in 16 bits.
const MaxKeyLen = math.MaxUint16

const (
	defaultEntriesInWindow = 16384
	defaultEntrySize       = 256
)

func coalesce(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type Provider struct {
	c   *bc.BigCache
	now func() time.Time

	ticker    *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Shards             int           // power of two; 0 => 1024
	MaxEntriesInWindow int           // initial sizing hint; 0 => 16384
	MaxEntrySize       int           // initial sizing hint in bytes; 0 => 256
	SweepInterval      time.Duration // 0 disables the background sweep of expired entries
}

func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(lifeWindow)
	conf.CleanWindow = 0
	conf.HardMaxCacheSize = 0
	conf.Verbose = false
	// bigcache preallocates entries*size per shard; its own defaults reserve
	// hundreds of megabytes up front.
	conf.Shards = coalesce(cfg.Shards, conf.Shards)
	conf.MaxEntriesInWindow = coalesce(cfg.MaxEntriesInWindow, defaultEntriesInWindow)
	conf.MaxEntrySize = coalesce(cfg.MaxEntrySize, defaultEntrySize)
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	p := &Provider{c: c, now: time.Now}
	if cfg.SweepInterval > 0 {
		p.ticker = time.NewTicker(cfg.SweepInterval)
		p.stopCh = make(chan struct{})
		p.wg.Add(1)
		go p.sweepLoop()
	}
	return p, nil
}

func (p *Provider) sweepLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ticker.C:
			p.Sweep()
		case <-p.stopCh:
			return
		}
	}
}

// load returns the live frame for key, dropping expired or foreign entries.
func (p *Provider) load(key string) (wire.Entry, []byte, bool) {
	raw, err := p.c.Get(key)
	if err != nil {
		return wire.Entry{}, nil, false
	}
	e, err := wire.Decode(raw)
	if err != nil || e.Expired(p.now()) {
		_ = p.c.Delete(key)
		return wire.Entry{}, nil, false
	}
	return e, raw, true
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, _, ok := p.load(key)
	if !ok {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: %d bytes > %d", pr.ErrKeyTooLong, len(key), MaxKeyLen)
	}
	return p.c.Set(key, wire.Encode(wire.Deadline(p.now(), ttl), value))
}

func (p *Provider) Del(_ context.Context, key string) (bool, error) {
	if _, _, ok := p.load(key); !ok {
		return false, nil
	}
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil // lost the race to a concurrent delete
	}
	return err == nil, err
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	_, _, ok := p.load(key)
	return ok, nil
}

// Expire rewrites the frame with a new deadline. Not atomic with respect
// to a concurrent Set of the same key; the last writer wins.
func (p *Provider) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, raw, ok := p.load(key)
	if !ok {
		return false, nil
	}
	b, err := wire.Reframe(raw, wire.Deadline(p.now(), ttl))
	if err != nil {
		return false, err
	}
	return true, p.c.Set(key, b)
}

func (p *Provider) DelPrefix(_ context.Context, prefix string) (int, error) {
	var keys []string
	it := p.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry vanished while iterating
		}
		if k := info.Key(); strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	n := 0
	for _, k := range keys {
		if err := p.c.Delete(k); err == nil {
			n++
		}
	}
	return n, nil
}

// Sweep drops every expired entry and returns how many were removed.
func (p *Provider) Sweep() int {
	now := p.now()
	var expired []string
	it := p.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		e, err := wire.Decode(info.Value())
		if err != nil || e.Expired(now) {
			expired = append(expired, info.Key())
		}
	}
	n := 0
	for _, k := range expired {
		if err := p.c.Delete(k); err == nil {
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (p *Provider) Len() int { return p.c.Len() }

// Close stops the sweeper and releases the store.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Provider) Close(_ context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		if p.stopCh != nil {
			close(p.stopCh)
			p.ticker.Stop()
			p.wg.Wait()
		}
		err = p.c.Close()
	})
	return err
}
