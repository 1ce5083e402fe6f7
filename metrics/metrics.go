// Package metrics mirrors the teacher's first-party metrics package
// (metrics.NewRegisteredCounter, metrics.GetOrRegisterMeter, as used by
// core/vote/vote_pool.go, core/state/trie_prefetcher.go and
// eth/protocols/trust/metrics.go) on top of the real third-party
// github.com/rcrowley/go-metrics registry.
package metrics

import gometrics "github.com/rcrowley/go-metrics"

// DefaultRegistry is the shared registry every Counter/Gauge/Meter in this
// process registers into, matching the teacher's package-level singleton.
var DefaultRegistry = gometrics.NewRegistry()

// Counter is a monotonically-increasing (or decreasing) integer metric.
type Counter = gometrics.Counter

// Gauge is a point-in-time integer metric.
type Gauge = gometrics.Gauge

// Meter tracks an event rate.
type Meter = gometrics.Meter

// Timer tracks both the rate and the distribution of a duration, used for
// the validate_chain latency signal.
type Timer = gometrics.Timer

// NewRegisteredCounter registers and returns a new Counter under name,
// using DefaultRegistry when r is nil.
func NewRegisteredCounter(name string, r gometrics.Registry) Counter {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.NewRegisteredCounter(name, r)
}

// NewRegisteredGauge registers and returns a new Gauge under name.
func NewRegisteredGauge(name string, r gometrics.Registry) Gauge {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.NewRegisteredGauge(name, r)
}

// GetOrRegisterMeter returns the named Meter, creating it against
// DefaultRegistry if this is the first call for that name.
func GetOrRegisterMeter(name string, r gometrics.Registry) Meter {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.GetOrRegisterMeter(name, r)
}

// GetOrRegisterTimer returns the named Timer, creating it against
// DefaultRegistry if this is the first call for that name.
func GetOrRegisterTimer(name string, r gometrics.Registry) Timer {
	if r == nil {
		r = DefaultRegistry
	}
	return gometrics.GetOrRegisterTimer(name, r)
}
