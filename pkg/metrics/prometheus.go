// Package metrics provides Prometheus metrics for the benchmarking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Benchmark calculation
	calculationRuns      *prometheus.CounterVec
	calculationLatency   prometheus.Histogram
	benchmarksWritten    *prometheus.CounterVec
	parametersSkipped    *prometheus.CounterVec
	observationsConsumed prometheus.Counter

	// Entries and normalization
	entriesSubmitted     *prometheus.CounterVec
	coercionFailures     *prometheus.CounterVec
	normalizations       *prometheus.CounterVec
	normalizationLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec
	repositoryRetries prometheus.Counter
	benchmarksStored  prometheus.Gauge

	// Recalculation queue and workers
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	jobsDeduplicated prometheus.Counter
	workerCount      prometheus.Gauge
	workerBusy       prometheus.Gauge
	jobLatency       prometheus.Histogram
	jobErrors        prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // service registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "bench",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
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

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.calculationRuns = auto.NewCounterVec(
		m.counterOpts("calculation_runs_total", "Benchmark calculation runs by outcome"),
		[]string{"outcome"},
	)
	m.calculationLatency = auto.NewHistogram(
		m.histogramOpts("calculation_latency_milliseconds", "Benchmark calculation run latency in milliseconds", nil),
	)
	m.benchmarksWritten = auto.NewCounterVec(
		m.counterOpts("benchmarks_written_total", "Benchmark records written by the orchestrator"),
		[]string{"result"},
	)
	m.parametersSkipped = auto.NewCounterVec(
		m.counterOpts("parameters_skipped_total", "Parameters skipped during calculation"),
		[]string{"reason"},
	)
	m.observationsConsumed = auto.NewCounter(
		m.counterOpts("observations_consumed_total", "Non-null observations fed into benchmark statistics"),
	)

	m.entriesSubmitted = auto.NewCounterVec(
		m.counterOpts("entries_submitted_total", "Entries submitted by outcome"),
		[]string{"outcome"},
	)
	m.coercionFailures = auto.NewCounterVec(
		m.counterOpts("coercion_failures_total", "Observations rejected by the type coercer"),
		[]string{"parameter_type"},
	)
	m.normalizations = auto.NewCounterVec(
		m.counterOpts("normalizations_total", "Observations normalized by outcome"),
		[]string{"outcome"},
	)
	m.normalizationLatency = auto.NewHistogram(
		m.histogramOpts("normalization_latency_milliseconds", "Entry normalization latency in milliseconds", nil),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)

	m.repositoryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_latency_milliseconds", "Repository operation latency in milliseconds", nil),
		[]string{"operation"},
	)
	m.repositoryErrors = auto.NewCounterVec(
		m.counterOpts("repository_errors_total", "Repository operation errors"),
		[]string{"operation"},
	)
	m.repositoryRetries = auto.NewCounter(
		m.counterOpts("repository_retries_total", "Repository write retries after a busy database"),
	)
	m.benchmarksStored = auto.NewGauge(
		m.gaugeOpts("benchmarks_stored", "Benchmark records currently stored"),
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("recalc_queue_size", "Pending recalculation jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("recalc_queue_capacity", "Recalculation queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("recalc_enqueued_total", "Recalculation jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("recalc_dequeued_total", "Recalculation jobs dequeued"))
	m.queueRejected = auto.NewCounterVec(
		m.counterOpts("recalc_rejected_total", "Recalculation jobs rejected by reason"),
		[]string{"reason"},
	)
	m.jobsDeduplicated = auto.NewCounter(
		m.counterOpts("recalc_deduplicated_total", "Recalculation jobs collapsed into an in-flight job"),
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("recalc_worker_count", "Recalculation workers"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("recalc_worker_busy", "Recalculation workers currently running a job"))
	m.jobLatency = auto.NewHistogram(
		m.histogramOpts("recalc_job_latency_milliseconds", "Recalculation job latency in milliseconds", nil),
	)
	m.jobErrors = auto.NewCounter(m.counterOpts("recalc_job_errors_total", "Recalculation jobs that failed"))

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordCalculationRun counts a calculation run with outcome ok, not_found, no_data or error.
func RecordCalculationRun(outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.calculationRuns.WithLabelValues(outcome).Inc()
	globalManager.calculationLatency.Observe(latencyMs)
}

// RecordBenchmarkWritten counts a benchmark upsert; created distinguishes insert from update.
func RecordBenchmarkWritten(created bool) {
	if !globalManager.enabled {
		return
	}
	result := "updated"
	if created {
		result = "created"
	}
	globalManager.benchmarksWritten.WithLabelValues(result).Inc()
}

// RecordParameterSkipped counts a parameter left out of a calculation run.
func RecordParameterSkipped(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.parametersSkipped.WithLabelValues(reason).Inc()
}

// RecordObservationsConsumed adds n to the observations fed into statistics.
func RecordObservationsConsumed(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.observationsConsumed.Add(float64(n))
}

// RecordEntrySubmitted counts an entry submission with outcome accepted or rejected.
func RecordEntrySubmitted(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.entriesSubmitted.WithLabelValues(outcome).Inc()
}

// RecordCoercionFailure counts an observation rejected for parameterType.
func RecordCoercionFailure(parameterType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.coercionFailures.WithLabelValues(parameterType).Inc()
}

// RecordNormalization counts one normalized observation by outcome.
func RecordNormalization(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.normalizations.WithLabelValues(outcome).Inc()
}

// RecordNormalizationLatency records an entry normalization latency.
func RecordNormalizationLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.normalizationLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordRepositoryLatency records latency of a repository operation.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(operation string) {
	globalManager.repositoryErrors.WithLabelValues(operation).Inc()
}

// RecordRepositoryRetry counts a retried repository write.
func RecordRepositoryRetry() {
	globalManager.repositoryRetries.Inc()
}

// UpdateBenchmarksStored sets the number of stored benchmark records.
func UpdateBenchmarksStored(count int) {
	globalManager.benchmarksStored.Set(float64(count))
}

// UpdateQueueSize sets the pending recalculation job count.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the recalculation queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordJobDeduplicated counts a job collapsed into one already pending.
func RecordJobDeduplicated() {
	globalManager.jobsDeduplicated.Inc()
}

// UpdateWorkerCount sets the number of recalculation workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy moves the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordJobLatency records how long a recalculation job took.
func RecordJobLatency(latencyMs float64) {
	globalManager.jobLatency.Observe(latencyMs)
}

// RecordJobError counts a failed recalculation job.
func RecordJobError() {
	globalManager.jobErrors.Inc()
}

// UpdateSystemMemoryUsage sets the heap bytes allocated.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry used by the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
