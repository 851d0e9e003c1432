package stratcache

import "github.com/unkn0wn-root/stratcache/config"

// Default is the process-wide selector used by the package-level helpers.
var Default = NewSelector()

func Register(id Identifier, f Factory) error { return Default.Registry().Register(id, f) }

func Activate(id Identifier) error { return Default.Activate(id) }

func Current() Strategy { return Default.Current() }

func Override(id Identifier) (Strategy, error) { return Default.Override(id) }

func ActivateFromConnectionString(kind Identifier, conn string) (bool, error) {
	return Default.ActivateFromConnectionString(kind, conn)
}

func Bootstrap(settings config.Settings) (Identifier, error) { return Default.Bootstrap(settings) }

// SetNamespace sets the namespace of the default selector. It must run
// before the first activation or cache operation.
func SetNamespace(ns string) error { return Default.Namespace().Set(ns) }

// ResolveNamespace returns the default selector's namespace and seals it.
func ResolveNamespace() string { return Default.Namespace().Resolve() }
