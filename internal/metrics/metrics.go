// Package metrics exposes Prometheus counters for the lock strategies.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Acquisitions counts successful lock acquisitions per strategy.
	Acquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockguard_lock_acquisitions_total",
		Help: "Successful lock acquisitions by strategy",
	}, []string{"strategy"})
	// Timeouts counts acquisitions that gave up at their deadline.
	Timeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockguard_lock_timeouts_total",
		Help: "Lock acquisitions abandoned at their deadline, by strategy",
	}, []string{"strategy"})
	// Conflicts counts optimistic writes rejected by the version check.
	Conflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockguard_version_conflicts_total",
		Help: "Optimistic writes rejected by the version check",
	})
	// Retries counts optimistic read-modify-write cycles repeated after a conflict.
	Retries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stockguard_optimistic_retries_total",
		Help: "Optimistic cycles repeated after a version conflict",
	})
)

// Register installs the strategy metrics on the provided registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(Acquisitions, Timeouts, Conflicts, Retries)
}
