// Package sloghooks reports stratcache events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/stratcache"
)

type Options struct {
	// Log every Nth backend error; 0/1 = log all. Activation and namespace
	// events are rare and always logged.
	BackendErrorEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	backendErrCtr atomic.Uint64
}

var _ stratcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StrategyActivated(from, to stratcache.Identifier) {
	if h.l == nil {
		return
	}
	h.l.Info("stratcache.strategy_activated",
		"from", string(from),
		"to", string(to))
}

func (h *Hooks) ActivationSkipped(kind stratcache.Identifier, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("stratcache.activation_skipped",
		"kind", string(kind),
		"reason", reason)
}

func (h *Hooks) BackendError(id stratcache.Identifier, op string, err error) {
	if h.l == nil || !sample(h.opts.BackendErrorEvery, &h.backendErrCtr) {
		return
	}
	h.l.Warn("stratcache.backend_error",
		"strategy", string(id),
		"op", op,
		"err", err)
}

func (h *Hooks) NamespaceSealed(ns string) {
	if h.l == nil {
		return
	}
	h.l.Debug("stratcache.namespace_sealed", "ns", ns)
}
