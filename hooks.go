package stratcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; BackendError is called
// on the cache traffic path.
type Hooks interface {
	// The active strategy changed. from is empty on the first activation.
	StrategyActivated(from, to Identifier)

	// A connection string did not activate its backend.
	// reason ∈ {"placeholder", "disabled"}
	ActivationSkipped(kind Identifier, reason string)

	// A backend operation failed. op ∈ {"get", "set", "remove", "exists",
	// "expire", "clear", "close"}
	BackendError(id Identifier, op string, err error)

	// The namespace was frozen at ns.
	NamespaceSealed(ns string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StrategyActivated(Identifier, Identifier) {}
func (NopHooks) ActivationSkipped(Identifier, string)     {}
func (NopHooks) BackendError(Identifier, string, error)   {}
func (NopHooks) NamespaceSealed(string)                   {}
