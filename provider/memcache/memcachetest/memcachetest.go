// Package memcachetest provides an in-process stand-in for a memcached
// client.
package memcachetest

import (
	"strconv"
	"sync"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"
)

const relativeLimit = 30 * 24 * 60 * 60

type entry struct {
	value    []byte
	deadline time.Time // zero: never
}

// Client is a map-backed client that honours memcached's exptime rules
// against Now. Fail, when set, is returned by every call.
type Client struct {
	mu      sync.Mutex
	items   map[string]entry
	Now     func() time.Time
	Fail    error
	Closed  bool
	Touched map[string]int32
}

func New() *Client {
	return &Client{items: map[string]entry{}, Now: time.Now, Touched: map[string]int32{}}
}

func (c *Client) deadline(exp int32) time.Time {
	switch {
	case exp <= 0:
		return time.Time{}
	case exp <= relativeLimit:
		return c.Now().Add(time.Duration(exp) * time.Second)
	default:
		return time.Unix(int64(exp), 0)
	}
}

// live returns the entry under key, dropping it when expired. c.mu is held.
func (c *Client) live(key string) (entry, bool) {
	e, ok := c.items[key]
	if !ok {
		return entry{}, false
	}
	if !e.deadline.IsZero() && !c.Now().Before(e.deadline) {
		delete(c.items, key)
		return entry{}, false
	}
	return e, true
}

func (c *Client) Get(key string) (*mc.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return nil, c.Fail
	}
	e, ok := c.live(key)
	if !ok {
		return nil, mc.ErrCacheMiss
	}
	return &mc.Item{Key: key, Value: append([]byte(nil), e.value...)}, nil
}

func (c *Client) Set(it *mc.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	c.items[it.Key] = entry{value: append([]byte(nil), it.Value...), deadline: c.deadline(it.Expiration)}
	return nil
}

func (c *Client) Add(it *mc.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	if _, ok := c.live(it.Key); ok {
		return mc.ErrNotStored
	}
	c.items[it.Key] = entry{value: append([]byte(nil), it.Value...), deadline: c.deadline(it.Expiration)}
	return nil
}

func (c *Client) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	if _, ok := c.live(key); !ok {
		return mc.ErrCacheMiss
	}
	delete(c.items, key)
	return nil
}

func (c *Client) Touch(key string, seconds int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return c.Fail
	}
	e, ok := c.live(key)
	if !ok {
		return mc.ErrCacheMiss
	}
	e.deadline = c.deadline(seconds)
	c.items[key] = e
	c.Touched[key] = seconds
	return nil
}

func (c *Client) Increment(key string, delta uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		return 0, c.Fail
	}
	e, ok := c.live(key)
	if !ok {
		return 0, mc.ErrCacheMiss
	}
	n, err := strconv.ParseUint(string(e.value), 10, 64)
	if err != nil {
		return 0, err
	}
	n += delta
	e.value = []byte(strconv.FormatUint(n, 10))
	c.items[key] = e
	return n, nil
}

// Evict drops key as if the server had evicted it.
func (c *Client) Evict(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, live or not.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.Closed = true
	c.mu.Unlock()
	return nil
}
