// Package metrics provides Prometheus metrics for the skinmate analysis service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the skinmate service.
type Manager struct {
	namespace        string
	subsystem        string
	metricPrefix     string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Analysis pipeline
	jobsSubmitted   prometheus.Counter
	jobsDuplicate   prometheus.Counter
	jobsCompleted   *prometheus.CounterVec
	scoringLatency  prometheus.Histogram
	qualityVerdicts *prometheus.CounterVec
	sharpness       prometheus.Histogram

	// Progress channel
	progressPublishes   *prometheus.CounterVec
	progressRejected    prometheus.Counter
	progressSubscribers prometheus.Gauge
	progressRecords     prometheus.Gauge
	progressScavenged   prometheus.Counter

	// Retry and classification
	retryAttempts    *prometheus.CounterVec
	retryExhausted   prometheus.Counter
	errorsClassified *prometheus.CounterVec
	errorsComponent  *prometheus.CounterVec

	// Mentor matching
	mentorMatches      *prometheus.CounterVec
	mentorQueryLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skinmate",
		subsystem:        "analysis",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		ConstLabels: m.customLabels, Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.jobsSubmitted = m.counter("jobs_submitted_total", "Total number of analysis jobs accepted")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Total number of submissions rejected for a reused job id")
	m.jobsCompleted = m.counterVec("jobs_completed_total", "Total number of analysis jobs finished by outcome", "outcome")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Latency of the opaque skin scorer in milliseconds", m.histogramBuckets)
	m.qualityVerdicts = m.counterVec("quality_assessments_total", "Quality gate verdicts", "verdict")
	m.sharpness = m.histogram("quality_sharpness_score", "Normalized sharpness scores measured by the quality gate",
		[]float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1})

	m.progressPublishes = m.counterVec("progress_publishes_total", "Progress updates accepted by stage", "stage")
	m.progressRejected = m.counter("progress_rejected_total", "Progress updates rejected by validation")
	m.progressSubscribers = m.gauge("progress_subscribers", "Currently open progress subscriptions")
	m.progressRecords = m.gauge("progress_records", "Progress records held by the store")
	m.progressScavenged = m.counter("progress_scavenged_total", "Idle progress records removed by the scavenger")

	m.retryAttempts = m.counterVec("retry_attempts_total", "Retried attempts by error kind", "kind")
	m.retryExhausted = m.counter("retry_exhausted_total", "Operations that ran out of retry attempts")
	m.errorsClassified = m.counterVec("errors_classified_total", "Classified errors surfaced by kind", "kind")
	m.errorsComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.mentorMatches = m.counterVec("mentor_matches_total", "Mentor match lookups by outcome", "outcome")
	m.mentorQueryLatency = m.histogram("mentor_query_latency_milliseconds", "Mentor repository query latency in milliseconds", m.histogramBuckets)

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_requests_total"),
		Help: "Total HTTP requests by endpoint, method and status", ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.queueSize = m.gauge("queue_size", "Current number of jobs in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization (0-1)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total enqueue failures")

	m.workerCount = m.gauge("worker_count", "Number of analysis workers")
	m.workerActive = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end job processing time in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs that ended with an error")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordJobSubmitted increments the accepted jobs counter.
func RecordJobSubmitted() {
	if on() {
		globalManager.jobsSubmitted.Inc()
	}
}

// RecordJobDuplicate increments the duplicate job id counter.
func RecordJobDuplicate() {
	if on() {
		globalManager.jobsDuplicate.Inc()
	}
}

// RecordJobCompleted counts a finished job; outcome is "complete" or "error".
func RecordJobCompleted(outcome string) {
	if on() {
		globalManager.jobsCompleted.WithLabelValues(outcome).Inc()
	}
}

// RecordScoringLatency records scorer latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	if on() {
		globalManager.scoringLatency.Observe(latencyMs)
	}
}

// RecordQualityVerdict counts a quality gate verdict and its sharpness score.
func RecordQualityVerdict(good bool, sharpness float64) {
	if !on() {
		return
	}
	verdict := "rejected"
	if good {
		verdict = "accepted"
	}
	globalManager.qualityVerdicts.WithLabelValues(verdict).Inc()
	globalManager.sharpness.Observe(sharpness)
}

// RecordProgressPublish counts an accepted progress update.
func RecordProgressPublish(stage string) {
	if on() {
		globalManager.progressPublishes.WithLabelValues(stage).Inc()
	}
}

// RecordProgressRejected counts a progress update refused by validation.
func RecordProgressRejected() {
	if on() {
		globalManager.progressRejected.Inc()
	}
}

// AddProgressSubscribers moves the open subscription gauge by delta.
func AddProgressSubscribers(delta int) {
	if on() {
		globalManager.progressSubscribers.Add(float64(delta))
	}
}

// UpdateProgressRecords sets the number of records held by the store.
func UpdateProgressRecords(count int) {
	if on() {
		globalManager.progressRecords.Set(float64(count))
	}
}

// RecordProgressScavenged counts records removed by the idle sweep.
func RecordProgressScavenged(count int) {
	if on() && count > 0 {
		globalManager.progressScavenged.Add(float64(count))
	}
}

// RecordRetryAttempt counts a retried attempt by error kind.
func RecordRetryAttempt(kind string) {
	if on() {
		globalManager.retryAttempts.WithLabelValues(kind).Inc()
	}
}

// RecordRetryExhausted counts an operation that used every attempt.
func RecordRetryExhausted() {
	if on() {
		globalManager.retryExhausted.Inc()
	}
}

// RecordClassifiedError counts a classified error surfaced to a caller.
func RecordClassifiedError(kind string) {
	if on() {
		globalManager.errorsClassified.WithLabelValues(kind).Inc()
	}
}

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordMentorMatch counts a mentor lookup; outcome is "found", "none" or "error".
func RecordMentorMatch(outcome string) {
	if on() {
		globalManager.mentorMatches.WithLabelValues(outcome).Inc()
	}
}

// RecordMentorQueryLatency records repository query latency in milliseconds.
func RecordMentorQueryLatency(latencyMs float64) {
	if on() {
		globalManager.mentorQueryLatency.Observe(latencyMs)
	}
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization updates queue utilization (0-1).
func UpdateQueueUtilization(utilization float64) {
	if on() {
		globalManager.queueUtilization.Set(utilization)
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueue.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeue.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if on() {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// AddWorkerActive moves the busy worker gauge by delta.
func AddWorkerActive(delta int) {
	if on() {
		globalManager.workerActive.Add(float64(delta))
	}
}

// RecordWorkerProcessingLatency records job processing time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if on() {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// UpdateSystemMemoryUsage updates heap memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// Configure rebuilds the global manager from opts on a fresh registry, which
// GetRegistry returns from then on. Call it at startup before anything
// records or serves the registry.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// SetEnabled toggles recording for the global manager.
func SetEnabled(enabled bool) {
	if globalManager != nil {
		globalManager.enabled = enabled
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
