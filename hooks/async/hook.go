// Package asynchook moves stratcache hook calls off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{BackendErrorEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	sel := stratcache.NewSelector(stratcache.WithHooks(hooks))
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/stratcache"
)

type Hooks struct {
	inner   stratcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Uint64
}

var _ stratcache.Hooks = (*Hooks)(nil)

func New(inner stratcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StrategyActivated(from, to stratcache.Identifier) {
	h.try(func() { h.inner.StrategyActivated(from, to) })
}

func (h *Hooks) ActivationSkipped(kind stratcache.Identifier, reason string) {
	h.try(func() { h.inner.ActivationSkipped(kind, reason) })
}

func (h *Hooks) BackendError(id stratcache.Identifier, op string, err error) {
	h.try(func() { h.inner.BackendError(id, op, err) })
}

func (h *Hooks) NamespaceSealed(ns string) { h.try(func() { h.inner.NamespaceSealed(ns) }) }
