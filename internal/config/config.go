// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat snake_case keys shared by the YAML file and SKINMATE_ env vars.
// - New() returns a Config with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"time"
)

// Backend names accepted by progress_backend and mentor_backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the job id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ReportCapacity caps how many finished reports are kept in memory.
	ReportCapacity int `koanf:"report_capacity"`

	// Preprocessing.
	MaxUploadBytes int     `koanf:"max_upload_bytes"`
	MaxPixels      int64   `koanf:"max_pixels"` // decoded width*height ceiling
	MaxDimension   int     `koanf:"max_dimension"`
	JPEGQuality    float64 `koanf:"jpeg_quality"`

	// Quality gate thresholds.
	MinLongEdge        int     `koanf:"min_long_edge"`
	TargetLongEdge     int     `koanf:"target_long_edge"`
	SharpnessCutoff    float64 `koanf:"sharpness_cutoff"`
	SharpnessIdeal     float64 `koanf:"sharpness_ideal"`
	SharpnessReference float64 `koanf:"sharpness_reference"`
	MinBytesPerPixel   float64 `koanf:"min_bytes_per_pixel"`

	// Progress channel.
	ProgressPollIntervalMS  int    `koanf:"progress_poll_interval_ms"`
	ProgressIdleTimeoutS    int    `koanf:"progress_idle_timeout_s"`
	ProgressSweepIntervalS  int    `koanf:"progress_sweep_interval_s"`
	ProgressMonotonicStages bool   `koanf:"progress_monotonic_stages"`
	ProgressBackend         string `koanf:"progress_backend"`
	RedisURL                string `koanf:"redis_url"`

	// Retry policy around the scoring service.
	RetryMaxAttempts    int `koanf:"retry_max_attempts"`
	RetryInitialDelayMS int `koanf:"retry_initial_delay_ms"`

	// ScoringLatencyMinMS and ScoringLatencyMaxMS simulate external ML latency bounds.
	ScoringLatencyMinMS int     `koanf:"scoring_latency_min_ms"`
	ScoringLatencyMaxMS int     `koanf:"scoring_latency_max_ms"`
	ScoringFailureRate  float64 `koanf:"scoring_failure_rate"`

	// Mentor repository.
	MentorBackend  string `koanf:"mentor_backend"`
	PostgresDSN    string `koanf:"postgres_dsn"`
	MentorSeedFile string `koanf:"mentor_seed_file"`

	// Prometheus metrics. Series are named
	// <namespace>_<subsystem>_<prefix>_<metric>; empty parts are skipped.
	// Labels are attached to every series and are easiest to set from YAML.
	MetricsEnabled   bool              `koanf:"metrics_enabled"`
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsPrefix    string            `koanf:"metrics_prefix"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
	MetricsBucketsMS []float64         `koanf:"metrics_buckets_ms"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		QueueSize:               1_000,
		WorkerCount:             runtime.NumCPU() * 2,
		DedupeSize:              50_000,
		ReportCapacity:          10_000,
		MaxUploadBytes:          10 << 20,
		MaxPixels:               40_000_000,
		MaxDimension:            1024,
		JPEGQuality:             0.85,
		MinLongEdge:             480,
		TargetLongEdge:          700,
		SharpnessCutoff:         0.1,
		SharpnessIdeal:          0.3,
		SharpnessReference:      1000,
		MinBytesPerPixel:        0.04,
		ProgressPollIntervalMS:  1000,
		ProgressIdleTimeoutS:    600,
		ProgressSweepIntervalS:  30,
		ProgressMonotonicStages: true,
		ProgressBackend:         BackendMemory,
		RetryMaxAttempts:        3,
		RetryInitialDelayMS:     1000,
		ScoringLatencyMinMS:     80,
		ScoringLatencyMaxMS:     150,
		MentorBackend:           BackendMemory,
		MetricsEnabled:          true,
		MetricsNamespace:        "skinmate",
		MetricsSubsystem:        "analysis",
	}
}

// PollInterval is the progress subscriber poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ProgressPollIntervalMS) * time.Millisecond
}

// IdleTimeout is how long an untouched progress record survives.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.ProgressIdleTimeoutS) * time.Second
}

// SweepInterval is the scavenger period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.ProgressSweepIntervalS) * time.Second
}

// RetryInitialDelay is the first backoff wait.
func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMS) * time.Millisecond
}

// ScoringLatency returns the simulated scorer latency bounds.
func (c *Config) ScoringLatency() (time.Duration, time.Duration) {
	return time.Duration(c.ScoringLatencyMinMS) * time.Millisecond,
		time.Duration(c.ScoringLatencyMaxMS) * time.Millisecond
}

// Validate checks ranges and backend selections.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes < 1:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.MaxPixels < 1:
		return fmt.Errorf("%w: max_pixels must be positive", ErrInvalidConfig)
	case c.JPEGQuality <= 0 || c.JPEGQuality > 1:
		return fmt.Errorf("%w: jpeg_quality must be in (0, 1]", ErrInvalidConfig)
	case c.MinLongEdge < 1 || c.TargetLongEdge < c.MinLongEdge:
		return fmt.Errorf("%w: need 0 < min_long_edge <= target_long_edge", ErrInvalidConfig)
	case c.SharpnessCutoff < 0 || c.SharpnessIdeal < c.SharpnessCutoff || c.SharpnessIdeal > 1:
		return fmt.Errorf("%w: need 0 <= sharpness_cutoff <= sharpness_ideal <= 1", ErrInvalidConfig)
	case c.ProgressPollIntervalMS < 1 || c.ProgressIdleTimeoutS < 1 || c.ProgressSweepIntervalS < 1:
		return fmt.Errorf("%w: progress intervals must be positive", ErrInvalidConfig)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("%w: retry_max_attempts must be at least 1", ErrInvalidConfig)
	case c.ScoringLatencyMinMS < 0 || c.ScoringLatencyMaxMS < c.ScoringLatencyMinMS:
		return fmt.Errorf("%w: scoring latency range is inverted", ErrInvalidConfig)
	case c.ScoringFailureRate < 0 || c.ScoringFailureRate > 1:
		return fmt.Errorf("%w: scoring_failure_rate must be in [0, 1]", ErrInvalidConfig)
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}

	switch c.ProgressBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: redis_url is required for the redis progress backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown progress_backend %q", ErrInvalidConfig, c.ProgressBackend)
	}

	switch c.MentorBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the postgres mentor backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown mentor_backend %q", ErrInvalidConfig, c.MentorBackend)
	}
	return nil
}

// validateMetrics rejects names and buckets the Prometheus client would
// panic on at registration.
func (c *Config) validateMetrics() error {
	for key, v := range map[string]string{
		"metrics_namespace": c.MetricsNamespace,
		"metrics_subsystem": c.MetricsSubsystem,
		"metrics_prefix":    c.MetricsPrefix,
	} {
		if v != "" && !metricName.MatchString(v) {
			return fmt.Errorf("%w: %s %q is not a valid metric name part", ErrInvalidConfig, key, v)
		}
	}
	for name := range c.MetricsLabels {
		if !metricName.MatchString(name) {
			return fmt.Errorf("%w: metrics_labels key %q is not a valid label name", ErrInvalidConfig, name)
		}
	}
	if !slices.IsSorted(c.MetricsBucketsMS) || len(slices.Compact(slices.Clone(c.MetricsBucketsMS))) != len(c.MetricsBucketsMS) {
		return fmt.Errorf("%w: metrics_buckets_ms must be strictly increasing", ErrInvalidConfig)
	}
	return nil
}
