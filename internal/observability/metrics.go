// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package observability

import "github.com/prometheus/client_golang/prometheus"

// lifecycleTransitions counts plugin lifecycle transitions. Package
// level so lifecycle code can record without holding a Server.
var lifecycleTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quill_plugin_lifecycle_total",
		Help: "Total number of plugin lifecycle transitions by operation and status",
	},
	[]string{"operation", "status"},
)

// RecordLifecycle increments the lifecycle transition counter.
// operation is "activate", "deactivate", "load" or "unload"; status is
// "success" or "error".
func RecordLifecycle(operation, status string) {
	lifecycleTransitions.WithLabelValues(operation, status).Inc()
}

// Metrics holds the host-level Prometheus metrics.
type Metrics struct {
	PluginStates *prometheus.GaugeVec
}

// NewMetrics builds the host metrics and registers them, along with the
// package-level lifecycle counter, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PluginStates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quill_plugins",
				Help: "Number of installed plugins by lifecycle state",
			},
			[]string{"state"},
		),
	}
	reg.MustRegister(m.PluginStates, lifecycleTransitions)
	return m
}

// SetPluginStates replaces the plugin state gauge with the given state
// counts. States absent from counts are cleared.
func (m *Metrics) SetPluginStates(counts map[string]int) {
	m.PluginStates.Reset()
	for state, n := range counts {
		m.PluginStates.WithLabelValues(state).Set(float64(n))
	}
}
