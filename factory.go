package stratcache

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratcache/provider/memcache"
	"github.com/unkn0wn-root/stratcache/provider/memory"
	"github.com/unkn0wn-root/stratcache/provider/redis"
	"github.com/unkn0wn-root/stratcache/provider/redishash"
)

// MemoryFactory builds the InMemory strategy over a bigcache provider.
func MemoryFactory(cfg memory.Config, opts ...StrategyOption) Factory {
	return func(ns *Namespace) (Strategy, error) {
		p, err := memory.New(cfg)
		if err != nil {
			return nil, err
		}
		return NewStrategy(InMemory, p, ns, opts...), nil
	}
}

// KeyValueFactory builds the KeyValueStore strategy. newClient is called
// once, when the strategy is first instantiated; the strategy owns the
// client and closes it on Close.
func KeyValueFactory(newClient func() goredis.UniversalClient, opts ...StrategyOption) Factory {
	return func(ns *Namespace) (Strategy, error) {
		p, err := redis.New(redis.Config{Client: newClient(), CloseClient: true})
		if err != nil {
			return nil, err
		}
		return NewStrategy(KeyValueStore, p, ns, opts...), nil
	}
}

// HashFactory builds the HashStore strategy. Client ownership is the same
// as for KeyValueFactory.
func HashFactory(newClient func() goredis.UniversalClient, opts ...StrategyOption) Factory {
	return func(ns *Namespace) (Strategy, error) {
		p, err := redishash.New(redishash.Config{Client: newClient(), CloseClient: true})
		if err != nil {
			return nil, err
		}
		return NewStrategy(HashStore, p, ns, opts...), nil
	}
}

// MemcachedFactory builds the Memcached strategy. newClient is called once;
// the strategy closes the client on Close when it supports closing.
func MemcachedFactory(newClient func() memcache.Client, opts ...StrategyOption) Factory {
	return func(ns *Namespace) (Strategy, error) {
		p, err := memcache.New(memcache.Config{Client: newClient()})
		if err != nil {
			return nil, err
		}
		return NewStrategy(Memcached, p, ns, opts...), nil
	}
}
