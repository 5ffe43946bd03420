package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager before its collectors are built.
type Option func(*Manager)

// WithName places every series under namespace_subsystem. Empty parts keep
// the defaults ("bench", "engine").
func WithName(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithPrefix inserts prefix between the subsystem and each series name.
func WithPrefix(prefix string) Option {
	return func(m *Manager) { m.metricPrefix = prefix }
}

// WithLatencyBuckets replaces the millisecond buckets of the latency histograms
// that do not declare their own.
func WithLatencyBuckets(ms ...float64) Option {
	return func(m *Manager) {
		if len(ms) > 0 {
			m.histogramBuckets = ms
		}
	}
}

// WithLabel adds a constant label, e.g. the deployment or store kind.
func WithLabel(name, value string) Option {
	return func(m *Manager) {
		if m.customLabels == nil {
			m.customLabels = map[string]string{}
		}
		m.customLabels[name] = value
	}
}

// WithRegisterer attaches the collectors to r instead of the default registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Disabled builds the collectors but turns the Record* helpers into no-ops.
func Disabled() Option {
	return func(m *Manager) { m.enabled = false }
}
