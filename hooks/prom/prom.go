// Package promhook exports stratcache events as Prometheus metrics.
//
//	hooks, err := promhook.New(promhook.Config{Registerer: prometheus.DefaultRegisterer})
//	sel := stratcache.NewSelector(stratcache.WithHooks(hooks))
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/stratcache"
)

type Config struct {
	Registerer  prometheus.Registerer // nil => prometheus.DefaultRegisterer
	Namespace   string                // metric namespace; "" => "stratcache"
	ConstLabels prometheus.Labels
}

type Hooks struct {
	activations *prometheus.CounterVec
	skipped     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	active      *prometheus.GaugeVec
	sealed      prometheus.Counter
}

var _ stratcache.Hooks = (*Hooks)(nil)

// New creates and registers the collectors.
func New(cfg Config) (*Hooks, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "stratcache"
	}
	h := &Hooks{
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "activations_total", ConstLabels: cfg.ConstLabels,
			Help: "Strategy activations by target strategy.",
		}, []string{"strategy"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "activations_skipped_total", ConstLabels: cfg.ConstLabels,
			Help: "Connection strings that did not activate a backend.",
		}, []string{"strategy", "reason"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "backend_errors_total", ConstLabels: cfg.ConstLabels,
			Help: "Failed backend operations.",
		}, []string{"strategy", "op"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Name: "active_strategy", ConstLabels: cfg.ConstLabels,
			Help: "1 for the active strategy, 0 for previously active ones.",
		}, []string{"strategy"}),
		sealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "namespace_sealed_total", ConstLabels: cfg.ConstLabels,
			Help: "Times a namespace resolver was sealed.",
		}),
	}
	for _, c := range []prometheus.Collector{h.activations, h.skipped, h.errors, h.active, h.sealed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) StrategyActivated(from, to stratcache.Identifier) {
	h.activations.WithLabelValues(string(to)).Inc()
	if from != "" && from != to {
		h.active.WithLabelValues(string(from)).Set(0)
	}
	h.active.WithLabelValues(string(to)).Set(1)
}

func (h *Hooks) ActivationSkipped(kind stratcache.Identifier, reason string) {
	h.skipped.WithLabelValues(string(kind), reason).Inc()
}

func (h *Hooks) BackendError(id stratcache.Identifier, op string, _ error) {
	h.errors.WithLabelValues(string(id), op).Inc()
}

func (h *Hooks) NamespaceSealed(string) { h.sealed.Inc() }
