package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the runtime's Prometheus collectors. Each Metrics owns its
// registry so several runtimes (and tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Operations counts finished operations by kind (query, mutation) and
	// outcome (ok, error).
	Operations *prometheus.CounterVec

	// OperationDuration observes the time from issue to primary dispatch.
	OperationDuration *prometheus.HistogramVec

	// Dispatches counts store dispatches by result (update, error).
	Dispatches *prometheus.CounterVec

	// Cascades counts cache updater outcomes (applied, skipped, failed).
	Cascades *prometheus.CounterVec

	// InFlight is the number of operations awaiting dispatch.
	InFlight prometheus.Gauge
}

// NewMetrics creates and registers the runtime collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of finished GraphQL operations",
			},
			[]string{"kind", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time from issuing an operation to its primary dispatch",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of store dispatches",
			},
			[]string{"result"},
		),
		Cascades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cascade_updates_total",
				Help:      "Total number of mutation cache updaters processed",
			},
			[]string{"result"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operations_in_flight",
				Help:      "Operations issued but not yet dispatched",
			},
		),
	}

	registry.MustRegister(
		m.Operations,
		m.OperationDuration,
		m.Dispatches,
		m.Cascades,
		m.InFlight,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The helpers below accept a nil receiver so the runtime can run unmetered.

func (m *Metrics) operationStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) operationFinished(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Operations.WithLabelValues(kind, outcome).Inc()
	m.OperationDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) dispatched(isError bool) {
	if m == nil {
		return
	}
	result := "update"
	if isError {
		result = "error"
	}
	m.Dispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) cascade(result string) {
	if m == nil {
		return
	}
	m.Cascades.WithLabelValues(result).Inc()
}
