// Package metrics wires a Prometheus registry into the daemon and exposes
// an RPC-specific metrics interface on top of it. The registry is a
// package-level *prometheus.Registry guarded by sync.Once; a nil registry
// means metrics are disabled, and every Prometheus constructor in
// internal/metrics/prometheus returns nil when IsEnabled() is false.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// InitRegistry creates the package-level registry. Call once at startup
// before constructing any Prometheus-backed metrics implementation; calling
// it more than once is a no-op after the first call.
func InitRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
	return registry
}

// IsEnabled reports whether InitRegistry has been called. Every
// Prometheus-backed constructor in internal/metrics/prometheus checks this first and
// returns nil when it's false, giving callers zero-overhead metrics
// collection by passing that nil straight through to their collaborators.
func IsEnabled() bool {
	return registry != nil
}

// GetRegistry returns the package-level registry. Only meaningful once
// IsEnabled reports true.
func GetRegistry() *prometheus.Registry {
	return registry
}
