// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package hook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for dispatch metrics.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCritical = "critical"
	StatusCanceled = "canceled"
)

// Dispatches is the counter for hook dispatches.
// Use RegisterMetrics to register this with a Prometheus registry.
var Dispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quill_hook_dispatches_total",
		Help: "Total number of hook dispatches",
	},
	[]string{"hook", "status"},
)

// HandlerFailures is the counter for handler errors, including
// recovered panics.
// Use RegisterMetrics to register this with a Prometheus registry.
var HandlerFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quill_hook_handler_failures_total",
		Help: "Total number of hook handler failures",
	},
	[]string{"hook", "plugin"},
)

// DispatchDuration is the histogram for dispatch duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var DispatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "quill_hook_dispatch_duration_seconds",
		Help:    "Hook dispatch duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"hook"},
)

// RegisteredHandlers is the gauge for currently registered handlers.
// Use RegisterMetrics to register this with a Prometheus registry.
var RegisteredHandlers = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "quill_hook_handlers",
		Help: "Number of currently registered hook handlers",
	},
	[]string{"hook", "kind"},
)

// RegisterMetrics registers hook package metrics with the given
// Prometheus registry. This must be called at startup to make metrics
// available on /metrics. Panics if registration fails (following
// prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Dispatches)
	reg.MustRegister(HandlerFailures)
	reg.MustRegister(DispatchDuration)
	reg.MustRegister(RegisteredHandlers)
}

// recordDispatch increments the dispatch counter.
func recordDispatch(hook, status string) {
	Dispatches.WithLabelValues(hook, status).Inc()
}

// recordHandlerFailure increments the handler failure counter.
func recordHandlerFailure(hook, plugin string) {
	HandlerFailures.WithLabelValues(hook, plugin).Inc()
}

// recordDispatchDuration records how long a dispatch took.
func recordDispatchDuration(hook string, d time.Duration) {
	DispatchDuration.WithLabelValues(hook).Observe(d.Seconds())
}
