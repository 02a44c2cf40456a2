package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Intake
	diagnosticsReceived   prometheus.Counter
	diagnosticsDuplicate  prometheus.Counter
	diagnosticsRejected   *prometheus.CounterVec
	classificationLatency prometheus.Histogram

	// Pipeline
	opportunitiesCreated *prometheus.CounterVec
	stageTransitions     *prometheus.CounterVec
	activitiesCreated    *prometheus.CounterVec
	pipelineOpen         *prometheus.GaugeVec
	pipelineValue        prometheus.Gauge
	pipelineWeighted     prometheus.Gauge
	pipelineRefreshes    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clarisa",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: m.name(name), Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.diagnosticsReceived = auto.NewCounter(m.counterOpts("diagnostics_received_total", "Diagnostics accepted for processing"))
	m.diagnosticsDuplicate = auto.NewCounter(m.counterOpts("diagnostics_duplicate_total", "Diagnostic submissions ignored as retries"))
	m.diagnosticsRejected = auto.NewCounterVec(m.counterOpts("diagnostics_rejected_total", "Diagnostic submissions rejected"), []string{"reason"})
	m.classificationLatency = auto.NewHistogram(m.histogramOpts("classification_latency_milliseconds",
		"Time to classify and value a diagnostic", []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}))

	m.opportunitiesCreated = auto.NewCounterVec(m.counterOpts("opportunities_created_total", "Opportunities created by priority label"), []string{"priority"})
	m.stageTransitions = auto.NewCounterVec(m.counterOpts("stage_transitions_total", "Opportunity stage changes by target stage"), []string{"stage"})
	m.activitiesCreated = auto.NewCounterVec(m.counterOpts("activities_created_total", "Follow-up activities logged by type"), []string{"type"})
	m.pipelineOpen = auto.NewGaugeVec(m.gaugeOpts("open_opportunities", "Active opportunities per stage"), []string{"stage"})
	m.pipelineValue = auto.NewGauge(m.gaugeOpts("value_usd", "Estimated value of active opportunities"))
	m.pipelineWeighted = auto.NewGauge(m.gaugeOpts("weighted_value_usd", "Probability-weighted value of active opportunities"))
	m.pipelineRefreshes = auto.NewCounter(m.counterOpts("stats_refresh_total", "Scheduled pipeline stats refreshes"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Diagnostics waiting for a worker"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum intake queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Intake queue size / capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Diagnostics enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Diagnostics dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue attempts rejected"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Intake workers running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time to turn a diagnostic into an opportunity", nil))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Diagnostics a worker failed to process"))

	m.repositoryLatency = auto.NewHistogramVec(m.histogramOpts("repository_latency_milliseconds", "Store operation latency", nil), []string{"op"})
	m.repositoryErrors = auto.NewCounterVec(m.counterOpts("repository_errors_total", "Store operation failures"), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", nil),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of operations that failed", nil),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause time",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Intake.

// RecordDiagnosticReceived counts an accepted submission.
func RecordDiagnosticReceived() { globalManager.diagnosticsReceived.Inc() }

// RecordDiagnosticDuplicate counts a retried submission.
func RecordDiagnosticDuplicate() { globalManager.diagnosticsDuplicate.Inc() }

// RecordDiagnosticRejected counts a rejected submission by reason.
func RecordDiagnosticRejected(reason string) {
	globalManager.diagnosticsRejected.WithLabelValues(reason).Inc()
}

// RecordClassificationLatency records classifier latency in milliseconds.
func RecordClassificationLatency(ms float64) { globalManager.classificationLatency.Observe(ms) }

// Pipeline.

// RecordOpportunityCreated counts an opportunity by its priority label.
func RecordOpportunityCreated(label string) {
	globalManager.opportunitiesCreated.WithLabelValues(label).Inc()
}

// RecordStageTransition counts a move into stage.
func RecordStageTransition(stage string) {
	globalManager.stageTransitions.WithLabelValues(stage).Inc()
}

// RecordActivityCreated counts a logged activity by type.
func RecordActivityCreated(activityType string) {
	globalManager.activitiesCreated.WithLabelValues(activityType).Inc()
}

// UpdatePipeline publishes a pipeline snapshot. Stages missing from byStage
// are reset to zero.
func UpdatePipeline(byStage map[string]int, value, weighted float64) {
	globalManager.pipelineOpen.Reset()
	for stage, n := range byStage {
		globalManager.pipelineOpen.WithLabelValues(stage).Set(float64(n))
	}
	globalManager.pipelineValue.Set(value)
	globalManager.pipelineWeighted.Set(weighted)
	globalManager.pipelineRefreshes.Inc()
}

// Queue.

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }

// RecordWorkerProcessingLatency records per-diagnostic processing latency.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Repository.

// RecordRepositoryLatency records the latency of a store operation.
func RecordRepositoryLatency(op string, ms float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(ms)
}

// RecordRepositoryError counts a failed store operation.
func RecordRepositoryError(op string) { globalManager.repositoryErrors.WithLabelValues(op).Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that failed.
func RecordErrorLatency(component, errorType string, ms float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(ms)
}

// System.

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime records average GC pause time in milliseconds.
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
