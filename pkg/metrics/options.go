package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option configures a Manager. Zero values keep the default.
type Option func(*Manager)

// WithNamespace sets the first name segment, "skinmate" by default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the second name segment, "analysis" by default.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithMetricPrefix inserts a segment between the subsystem and the metric,
// e.g. "canary" gives skinmate_analysis_canary_jobs_submitted_total.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithHistogramBuckets replaces the millisecond buckets shared by the
// scoring, mentor query, worker and HTTP latency histograms.
func WithHistogramBuckets(bucketsMS []float64) Option {
	return func(m *Manager) {
		if len(bucketsMS) > 0 {
			m.histogramBuckets = bucketsMS
		}
	}
}

// WithMetricsEnabled turns recording on or off. Series are registered
// either way so dashboards keep their shape.
func WithMetricsEnabled(enabled bool) Option {
	return func(m *Manager) {
		m.enabled = enabled
	}
}

// WithCustomLabels attaches constant labels, such as a region, to every series.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if len(labels) > 0 {
			m.customLabels = labels
		}
	}
}

// WithPrometheusRegistry registers series on registry instead of the default.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
