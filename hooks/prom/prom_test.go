package promhook

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/stratcache"
	"github.com/unkn0wn-root/stratcache/config"
)

func newHooks(t *testing.T) (*Hooks, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	h, err := New(Config{Registerer: reg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, reg
}

func TestCounters(t *testing.T) {
	h, _ := newHooks(t)
	h.StrategyActivated("", stratcache.InMemory)
	h.StrategyActivated(stratcache.InMemory, stratcache.KeyValueStore)
	h.BackendError(stratcache.KeyValueStore, "get", errors.New("refused"))
	h.BackendError(stratcache.KeyValueStore, "get", errors.New("refused"))
	h.ActivationSkipped(stratcache.HashStore, "placeholder")

	if got := testutil.ToFloat64(h.activations.WithLabelValues("KeyValueStore")); got != 1 {
		t.Errorf("activations = %v", got)
	}
	if got := testutil.ToFloat64(h.active.WithLabelValues("InMemory")); got != 0 {
		t.Errorf("InMemory active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(h.active.WithLabelValues("KeyValueStore")); got != 1 {
		t.Errorf("KeyValueStore active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(h.errors.WithLabelValues("KeyValueStore", "get")); got != 2 {
		t.Errorf("errors = %v", got)
	}
	if got := testutil.ToFloat64(h.skipped.WithLabelValues("HashStore", "placeholder")); got != 1 {
		t.Errorf("skipped = %v", got)
	}
}

func TestDoubleRegistrationFails(t *testing.T) {
	_, reg := newHooks(t)
	if _, err := New(Config{Registerer: reg}); err == nil {
		t.Fatal("expected AlreadyRegisteredError")
	}
}

func TestWiredIntoSelector(t *testing.T) {
	h, _ := newHooks(t)
	sel := stratcache.NewSelector(stratcache.WithHooks(h))
	defer sel.Close(context.Background())

	if _, err := sel.Bootstrap(config.Settings{
		KeyValue: config.Backend{Configuration: config.RedisPlaceholder, Enabled: true},
		Hash:     config.Backend{Configuration: config.RedisPlaceholder, Enabled: true},
	}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if got := testutil.ToFloat64(h.skipped.WithLabelValues("KeyValueStore", "placeholder")); got != 1 {
		t.Errorf("skipped KeyValueStore = %v", got)
	}
	if got := testutil.ToFloat64(h.active.WithLabelValues("InMemory")); got != 1 {
		t.Errorf("InMemory active = %v", got)
	}
	if got := testutil.ToFloat64(h.sealed); got != 1 {
		t.Errorf("sealed = %v", got)
	}
}
