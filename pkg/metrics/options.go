// Package metrics provides Prometheus metrics for the red flag duel service.
package metrics

import (
	"maps"

	"github.com/prometheus/client_golang/prometheus"
)

// envLabel tags every series with the deployment it came from.
const envLabel = "env"

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithEnv labels every metric with the deployment environment. An empty
// name adds no label.
func WithEnv(env string) Option {
	return func(m *Manager) {
		if env != "" {
			m.constLabels[envLabel] = env
		}
	}
}

// WithConstLabels merges constant labels into every metric.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		maps.Copy(m.constLabels, labels)
	}
}

// WithMetricsEnabled turns the package recorders on or off.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithPrometheusRegistry registers the metrics on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
