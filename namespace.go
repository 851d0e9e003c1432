package stratcache

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// DefaultNamespace is used when no namespace is configured.
const DefaultNamespace = "DefaultCache"

// Namespace resolves the key prefix isolating this process's entries from
// others sharing a backend. The value can be set at most once and only
// until the resolver is sealed; sealing happens on the first activation or
// the first served cache operation.
type Namespace struct {
	mu     sync.Mutex
	value  atomic.Pointer[string]
	set    bool
	sealed atomic.Bool
	onSeal func(ns string)
}

// NewNamespace returns an unsealed resolver holding DefaultNamespace.
func NewNamespace() *Namespace {
	n := &Namespace{}
	def := DefaultNamespace
	n.value.Store(&def)
	return n
}

// Resolve returns the namespace and seals the resolver.
func (n *Namespace) Resolve() string {
	if !n.sealed.Load() {
		n.Seal()
	}
	return *n.value.Load()
}

// Peek returns the namespace without sealing.
func (n *Namespace) Peek() string { return *n.value.Load() }

// Set changes the namespace. It fails with ErrConfiguration when the value
// is invalid, was already set, or the resolver is sealed.
func (n *Namespace) Set(ns string) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sealed.Load() {
		return fmt.Errorf("%w: namespace is sealed at %q; set it before the first activation", ErrConfiguration, n.Peek())
	}
	if n.set {
		return fmt.Errorf("%w: namespace already set to %q", ErrConfiguration, n.Peek())
	}
	n.value.Store(&ns)
	n.set = true
	return nil
}

// Seal freezes the current value. Idempotent.
func (n *Namespace) Seal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sealed.Load() {
		return
	}
	n.sealed.Store(true)
	if n.onSeal != nil {
		n.onSeal(n.Peek())
	}
}

func (n *Namespace) Sealed() bool { return n.sealed.Load() }

// claim installs the seal callback of the selector owning n. It reports
// false when another selector already owns n.
func (n *Namespace) claim(onSeal func(ns string)) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onSeal != nil {
		return false
	}
	n.onSeal = onSeal
	return true
}

// ValidateNamespace rejects values that would break key isolation: the
// key separator, whitespace and Redis glob metacharacters.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return fmt.Errorf("%w: namespace must not be empty", ErrConfiguration)
	}
	if strings.ContainsAny(ns, `:*?[]\`) {
		return fmt.Errorf("%w: namespace %q contains a reserved character", ErrConfiguration, ns)
	}
	if strings.IndexFunc(ns, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: namespace %q contains whitespace", ErrConfiguration, ns)
	}
	return nil
}
