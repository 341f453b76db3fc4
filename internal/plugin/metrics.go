// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for unit call metrics.
const (
	OutcomeOK                = "ok"
	OutcomeMissingCapability = "missing_capability"
	OutcomeWrongReturnType   = "wrong_return_type"
	OutcomeUnitFault         = "unit_fault"
)

// Load result labels.
const (
	LoadLoaded    = "loaded"
	LoadReloaded  = "reloaded"
	LoadFailed    = "failed"
	LoadUnchanged = "unchanged"
	LoadRemoved   = "removed"
)

// UnitCalls counts capability invocations.
// Use RegisterMetrics to register this with a Prometheus registry.
var UnitCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "arcade_unit_calls_total",
		Help: "Total number of unit capability calls by outcome",
	},
	[]string{"unit", "capability", "outcome"},
)

// UnitCallDuration observes capability call latency.
var UnitCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "arcade_unit_call_duration_seconds",
		Help:    "Unit capability call duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"capability"},
)

// UnitLoads counts load attempts by result.
var UnitLoads = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "arcade_unit_loads_total",
		Help: "Total number of unit load attempts by result",
	},
	[]string{"result"},
)

// UnitsLoaded is the number of callable units.
var UnitsLoaded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "arcade_units_loaded",
		Help: "Number of units currently loaded",
	},
)

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(UnitCalls)
	reg.MustRegister(UnitCallDuration)
	reg.MustRegister(UnitLoads)
	reg.MustRegister(UnitsLoaded)
}

func recordCall(unit string, c Capability, outcome string, d time.Duration) {
	UnitCalls.WithLabelValues(unit, string(c), outcome).Inc()
	UnitCallDuration.WithLabelValues(string(c)).Observe(d.Seconds())
}

func recordLoad(result string) {
	UnitLoads.WithLabelValues(result).Inc()
}
