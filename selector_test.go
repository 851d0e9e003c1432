package stratcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/stratcache/config"
	"github.com/unkn0wn-root/stratcache/provider/memcache"
	"github.com/unkn0wn-root/stratcache/provider/memcache/memcachetest"
	"github.com/unkn0wn-root/stratcache/provider/memory"
)

func newTestSelector(t *testing.T, opts ...Option) (*Selector, *recordingHooks) {
	t.Helper()
	hooks := &recordingHooks{}
	reg := NewRegistry(WithMemoryConfig(memory.Config{Shards: 16}))
	s := NewSelector(append([]Option{WithRegistry(reg), WithHooks(hooks)}, opts...)...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, hooks
}

// countingFactory returns a memory-backed factory named id that counts
// how often it was invoked.
func countingFactory(id Identifier, calls *int) Factory {
	return func(ns *Namespace) (Strategy, error) {
		*calls++
		p, err := memory.New(memory.Config{Shards: 16})
		if err != nil {
			return nil, err
		}
		return NewStrategy(id, p, ns), nil
	}
}

func TestSelectorLazyDefault(t *testing.T) {
	s, hooks := newTestSelector(t)

	st := s.Current()
	if st.Identifier() != InMemory {
		t.Fatalf("default = %s, want InMemory", st.Identifier())
	}
	if s.Current() != st {
		t.Fatal("Current must return the same instance")
	}
	if s.Registry().Locked() {
		t.Fatal("implicit default must not lock the registry")
	}
	if !s.Namespace().Sealed() {
		t.Fatal("implicit default must seal the namespace")
	}
	if len(hooks.activated) != 1 || hooks.activated[0] != [2]Identifier{"", InMemory} {
		t.Fatalf("activated = %v", hooks.activated)
	}
	if len(hooks.sealed) != 1 || hooks.sealed[0] != DefaultNamespace {
		t.Fatalf("sealed = %v", hooks.sealed)
	}
}

func TestSelectorActivateLocksAndMemoizes(t *testing.T) {
	s, hooks := newTestSelector(t)
	calls := 0
	if err := s.Registry().Register("Custom", countingFactory("Custom", &calls)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Activate("Custom"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if s.CurrentIdentifier() != "Custom" {
		t.Fatalf("CurrentIdentifier = %s", s.CurrentIdentifier())
	}
	if !s.Registry().Locked() {
		t.Fatal("explicit activation must lock the registry")
	}
	if err := s.Registry().Register("Late", countingFactory("Late", &calls)); !errors.Is(err, ErrRegistryLocked) {
		t.Fatalf("Register after activation err = %v", err)
	}

	first := s.Current()
	_ = s.Activate(InMemory)
	_ = s.Activate("Custom")
	if s.Current() != first {
		t.Fatal("reactivation must reuse the memoized instance")
	}
	if o, _ := s.Override("Custom"); o != first {
		t.Fatal("Override must return the memoized instance")
	}
	if calls != 1 {
		t.Fatalf("factory calls = %d, want 1", calls)
	}
	want := [][2]Identifier{{"", "Custom"}, {"Custom", InMemory}, {InMemory, "Custom"}}
	if fmt.Sprint(hooks.activated) != fmt.Sprint(want) {
		t.Fatalf("activated = %v, want %v", hooks.activated, want)
	}
}

func TestSelectorActivateUnknown(t *testing.T) {
	s, _ := newTestSelector(t)
	if err := s.Activate("Nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if s.Registry().Locked() {
		t.Fatal("failed activation must not lock the registry")
	}
}

func TestSelectorFactoryError(t *testing.T) {
	s, _ := newTestSelector(t)
	boom := errors.New("boom")
	_ = s.Registry().Register("Broken", func(*Namespace) (Strategy, error) { return nil, boom })
	if err := s.Activate("Broken"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if s.CurrentIdentifier() != InMemory {
		t.Fatal("failed activation must keep the previous strategy")
	}
}

func TestSelectorOverrideDoesNotActivate(t *testing.T) {
	s, _ := newTestSelector(t)
	calls := 0
	_ = s.Registry().Register("Side", countingFactory("Side", &calls))
	o, err := s.Override("Side")
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if o.Identifier() != "Side" || s.CurrentIdentifier() != InMemory {
		t.Fatalf("override %s, current %s", o.Identifier(), s.CurrentIdentifier())
	}
}

func TestSelectorConcurrentActivateAndTraffic(t *testing.T) {
	s, _ := newTestSelector(t)
	calls := 0
	_ = s.Registry().Register("Other", countingFactory("Other", &calls))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				st := s.Current()
				k := fmt.Sprintf("w%d:%d", w, i)
				if err := st.Set(ctx, k, []byte(k), 0); err != nil {
					errs <- err
					return
				}
				v, ok, err := st.Get(ctx, k)
				if err != nil || !ok || string(v) != k {
					errs <- fmt.Errorf("%s on %s: ok=%v v=%q err=%v", k, st.Identifier(), ok, v, err)
					return
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			id := InMemory
			if i%2 == 0 {
				id = "Other"
			}
			if err := s.Activate(id); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSelectorPlaceholderSkips(t *testing.T) {
	s, hooks := newTestSelector(t)
	for _, conn := range []string{config.RedisPlaceholder, "", "   "} {
		ok, err := s.ActivateFromConnectionString(KeyValueStore, conn)
		if ok || err != nil {
			t.Fatalf("%q: ok=%v err=%v", conn, ok, err)
		}
	}
	if s.Registry().IsRegistered(KeyValueStore) || s.Registry().Locked() {
		t.Fatal("placeholder must not register or lock")
	}
	if s.CurrentIdentifier() != InMemory {
		t.Fatal("placeholder must leave InMemory active")
	}
	if len(hooks.skipped) != 3 || hooks.skipped[0] != "KeyValueStore:placeholder" {
		t.Fatalf("skipped = %v", hooks.skipped)
	}
}

func TestSelectorInvalidConnectionString(t *testing.T) {
	s, _ := newTestSelector(t)
	ok, err := s.ActivateFromConnectionString(KeyValueStore, "localhost:notaport")
	if ok || !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("ok=%v err=%v, want ErrInvalidConfiguration", ok, err)
	}
	if s.Registry().IsRegistered(KeyValueStore) {
		t.Fatal("invalid string must not register")
	}
}

func TestSelectorUnsupportedKind(t *testing.T) {
	s, _ := newTestSelector(t)
	ok, err := s.ActivateFromConnectionString("Etcd", "localhost:2379")
	if ok || !errors.Is(err, ErrNotFound) {
		t.Fatalf("ok=%v err=%v, want ErrNotFound", ok, err)
	}
}

func TestSelectorRegisteredKindIgnoresConnectionString(t *testing.T) {
	s, _ := newTestSelector(t)
	var calls int
	if err := s.Registry().Register("Etcd", countingFactory("Etcd", &calls)); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ActivateFromConnectionString("Etcd", "localhost:2379")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if s.CurrentIdentifier() != "Etcd" || calls != 1 {
		t.Fatalf("current = %s, calls = %d", s.CurrentIdentifier(), calls)
	}
}

func memcacheOption(fc *memcachetest.Client, servers *[]string) Option {
	return WithMemcacheClientFactory(func(addrs []string) memcache.Client {
		*servers = addrs
		return fc
	})
}

func TestSelectorMemcached(t *testing.T) {
	fc := memcachetest.New()
	var servers []string
	s, _ := newTestSelector(t, memcacheOption(fc, &servers))
	if err := s.Namespace().Set("app"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ActivateFromConnectionString(Memcached, "mc1;mc2:11212")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if len(servers) != 2 || servers[0] != "mc1:11211" || servers[1] != "mc2:11212" {
		t.Fatalf("servers = %v", servers)
	}

	ctx := context.Background()
	st := s.Current()
	if st.Identifier() != Memcached {
		t.Fatalf("current = %s", st.Identifier())
	}
	if err := st.Set(ctx, "user:1", []byte("alice"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := st.Get(ctx, "user:1"); !ok || string(v) != "alice" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if err := st.ClearNamespace(ctx); err != nil {
		t.Fatalf("ClearNamespace: %v", err)
	}
	if ok, _ := st.Exists(ctx, "user:1"); ok {
		t.Fatal("clear left the key visible")
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fc.Closed {
		t.Fatal("Close must close the memcache client")
	}
}

func TestSelectorMemcachedUnavailable(t *testing.T) {
	fc := memcachetest.New()
	fc.Fail = errors.New("dial tcp: connection refused")
	var servers []string
	s, hooks := newTestSelector(t, memcacheOption(fc, &servers))
	if _, err := s.ActivateFromConnectionString(Memcached, "mc1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Current().Get(context.Background(), "k"); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if len(hooks.failures) != 1 || hooks.failures[0] != "Memcached:get" {
		t.Fatalf("failures = %v", hooks.failures)
	}
}

func TestSelectorMemcachedPlaceholderAndInvalid(t *testing.T) {
	s, hooks := newTestSelector(t)
	if ok, err := s.ActivateFromConnectionString(Memcached, config.MemcachedPlaceholder); ok || err != nil {
		t.Fatalf("placeholder: ok=%v err=%v", ok, err)
	}
	if len(hooks.skipped) != 1 || hooks.skipped[0] != "Memcached:placeholder" {
		t.Fatalf("skipped = %v", hooks.skipped)
	}
	if ok, err := s.ActivateFromConnectionString(Memcached, "mc1,timeout=5"); ok || !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("invalid: ok=%v err=%v", ok, err)
	}
	if s.Registry().IsRegistered(Memcached) {
		t.Fatal("invalid string must not register")
	}
}

func TestSelectorNamespaceHasOneOwner(t *testing.T) {
	ns := NewNamespace()
	first, hooks := newTestSelector(t, WithNamespace(ns))
	defer func() {
		if recover() == nil {
			t.Fatal("sharing a namespace between selectors must panic")
		}
		first.Current()
		if len(hooks.sealed) != 1 {
			t.Fatalf("sealed hooks = %v; the first selector must keep the namespace", hooks.sealed)
		}
	}()
	NewSelector(WithNamespace(ns))
}

func TestSelectorKeyValueStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, _ := newTestSelector(t)
	if err := s.Namespace().Set("app"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.ActivateFromConnectionString(KeyValueStore, mr.Addr())
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	ctx := context.Background()
	if err := s.Current().Set(ctx, "user:1", []byte("alice"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := mr.Get("app:user:1"); err != nil || got != "alice" {
		t.Fatalf("redis app:user:1 = %q, %v", got, err)
	}
	if err := s.Current().ClearNamespace(ctx); err != nil {
		t.Fatalf("ClearNamespace: %v", err)
	}
	if mr.Exists("app:user:1") {
		t.Fatal("clear left the key behind")
	}
}

func TestSelectorHashStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, _ := newTestSelector(t)
	ok, err := s.ActivateFromConnectionString(HashStore, "redis://"+mr.Addr()+"/0")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	ctx := context.Background()
	if err := s.Current().Set(ctx, "user:1", []byte("alice"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if mr.HGet(DefaultNamespace+":user", "1") == "" {
		t.Fatal(`expected field "1" in hash "DefaultCache:user"`)
	}
	v, ok, err := s.Current().Get(ctx, "user:1")
	if err != nil || !ok || string(v) != "alice" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
}

func TestSelectorBackendUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	s, _ := newTestSelector(t)
	if _, err := s.ActivateFromConnectionString(KeyValueStore, mr.Addr()+",connectTimeout=200"); err != nil {
		t.Fatal(err)
	}
	mr.Close()

	_, _, err := s.Current().Get(context.Background(), "k")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if s.CurrentIdentifier() != KeyValueStore {
		t.Fatal("backend failure must not switch strategies")
	}
}

func TestSelectorBootstrap(t *testing.T) {
	mr := miniredis.RunT(t)
	on := func(conn string) config.Backend { return config.Backend{Configuration: conn, Enabled: true} }
	off := func(conn string) config.Backend { return config.Backend{Configuration: conn, Enabled: false} }

	tests := []struct {
		name     string
		settings config.Settings
		want     Identifier
	}{
		{"nothing configured", config.Settings{KeyValue: on(config.RedisPlaceholder), Hash: on(config.RedisPlaceholder)}, InMemory},
		{"key value wins", config.Settings{KeyValue: on(mr.Addr()), Hash: on(mr.Addr())}, KeyValueStore},
		{"hash only", config.Settings{KeyValue: on(config.RedisPlaceholder), Hash: on(mr.Addr())}, HashStore},
		{"key value disabled", config.Settings{KeyValue: off(mr.Addr()), Hash: on(mr.Addr())}, HashStore},
		{"both disabled", config.Settings{KeyValue: off(mr.Addr()), Hash: off(mr.Addr())}, InMemory},
		{"memcached only", config.Settings{KeyValue: on(config.RedisPlaceholder), Hash: off(mr.Addr()), Memcached: on("mc1")}, Memcached},
		{"redis before memcached", config.Settings{KeyValue: on(mr.Addr()), Memcached: on("mc1")}, KeyValueStore},
		{"memcached placeholder", config.Settings{Memcached: on(config.MemcachedPlaceholder)}, InMemory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var servers []string
			s, _ := newTestSelector(t, memcacheOption(memcachetest.New(), &servers))
			tt.settings.Namespace = "boot"
			got, err := s.Bootstrap(tt.settings)
			if err != nil {
				t.Fatalf("Bootstrap: %v", err)
			}
			if got != tt.want || s.CurrentIdentifier() != tt.want {
				t.Fatalf("Bootstrap = %s (current %s), want %s", got, s.CurrentIdentifier(), tt.want)
			}
			if s.Namespace().Peek() != "boot" {
				t.Fatalf("namespace = %q", s.Namespace().Peek())
			}
		})
	}
}

func TestSelectorBootstrapInvalidString(t *testing.T) {
	s, _ := newTestSelector(t)
	_, err := s.Bootstrap(config.Settings{
		KeyValue: config.Backend{Configuration: "localhost,frobnicate=1", Enabled: true},
	})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestSelectorCloseResets(t *testing.T) {
	s, _ := newTestSelector(t)
	first := s.Current()
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Current() == first {
		t.Fatal("Current after Close must build a fresh instance")
	}
}
