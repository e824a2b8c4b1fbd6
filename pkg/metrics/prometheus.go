// Package metrics provides Prometheus metrics for the jobfit prediction service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by callers.
const (
	OutcomeOK                  = "ok"
	OutcomeArtifactUnavailable = "artifact_unavailable"
	OutcomeSchemaError         = "schema_error"
	OutcomeTimeout             = "timeout"
	OutcomeError               = "error"

	LoadHit   = "hit"
	LoadMiss  = "miss"
	LoadError = "error"
)

// Manager manages all Prometheus metrics for the jobfit service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Prediction path
	predictionsTotal        *prometheus.CounterVec
	predictionLatency       prometheus.Histogram
	predictionTopConfidence prometheus.Histogram

	// Artifact store
	artifactLoads       *prometheus.CounterVec
	artifactLoadLatency prometheus.Histogram
	artifactPublishes   prometheus.Counter
	artifactVersions    prometheus.Gauge

	// Active model shape
	activeModelClasses       prometheus.Gauge
	activeModelFeatures      prometheus.Gauge
	activeModelPublishedUnix prometheus.Gauge

	// Retraining
	retrainRuns        *prometheus.CounterVec
	retrainDuration    prometheus.Histogram
	retrainDatasetRows prometheus.Gauge

	// Retrain queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
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
		namespace:        "jobfit",
		subsystem:        "predictor",
		histogramBuckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.predictionsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictions_total",
		Help:        "Total number of prediction requests by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_latency_milliseconds",
		Help:        "End-to-end prediction latency in milliseconds, artifact load included",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.predictionTopConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_top_confidence",
		Help:        "Confidence of the best ranked role per prediction",
		Buckets:     []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		ConstLabels: labels,
	})

	m.artifactLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "artifact_loads_total",
		Help:        "Artifact set loads by result (hit, miss, error)",
		ConstLabels: labels,
	}, []string{"result"})

	m.artifactLoadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "artifact_load_latency_milliseconds",
		Help:        "Time spent resolving and decoding the active artifact set",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.artifactPublishes = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "artifact_publishes_total",
		Help:        "Total number of artifact sets published",
		ConstLabels: labels,
	})

	m.artifactVersions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "artifact_versions",
		Help:        "Number of artifact versions retained on disk",
		ConstLabels: labels,
	})

	m.activeModelClasses = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "active_model_classes",
		Help:        "Number of job roles known to the active model",
		ConstLabels: labels,
	})

	m.activeModelFeatures = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "active_model_features",
		Help:        "Length of the active feature schema",
		ConstLabels: labels,
	})

	m.activeModelPublishedUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "active_model_published_unix",
		Help:        "Unix timestamp at which the active model was trained",
		ConstLabels: labels,
	})

	m.retrainRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_runs_total",
		Help:        "Retraining runs by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.retrainDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_duration_milliseconds",
		Help:        "Retraining wall time in milliseconds",
		Buckets:     []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 300000},
		ConstLabels: labels,
	})

	m.retrainDatasetRows = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_dataset_rows",
		Help:        "Rows in the most recent successfully parsed training dataset",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_queue_size",
		Help:        "Retraining jobs waiting in the queue",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_queue_capacity",
		Help:        "Maximum retraining queue capacity",
		ConstLabels: labels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "retrain_queue_enqueue_errors_total",
		Help:        "Retraining jobs rejected by the queue",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_component_total",
			Help:        "Errors by component and error type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_endpoint_total",
			Help:        "HTTP errors by endpoint, method and error type",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// RecordPrediction counts a prediction by outcome and records its latency.
func RecordPrediction(outcome string, latency time.Duration) {
	globalManager.predictionsTotal.WithLabelValues(outcome).Inc()
	globalManager.predictionLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordTopConfidence records the confidence of the best ranked role.
func RecordTopConfidence(confidence float64) {
	globalManager.predictionTopConfidence.Observe(confidence)
}

// RecordArtifactLoad counts an artifact load and its latency.
func RecordArtifactLoad(result string, latency time.Duration) {
	globalManager.artifactLoads.WithLabelValues(result).Inc()
	globalManager.artifactLoadLatency.Observe(float64(latency.Microseconds()) / 1000)
}

// RecordArtifactPublish increments the publish counter.
func RecordArtifactPublish() {
	globalManager.artifactPublishes.Inc()
}

// UpdateArtifactVersions sets the number of retained versions.
func UpdateArtifactVersions(count int) {
	globalManager.artifactVersions.Set(float64(count))
}

// UpdateActiveModel publishes the shape of the model now serving traffic.
func UpdateActiveModel(classes, features int, trainedAt time.Time) {
	globalManager.activeModelClasses.Set(float64(classes))
	globalManager.activeModelFeatures.Set(float64(features))
	globalManager.activeModelPublishedUnix.Set(float64(trainedAt.Unix()))
}

// RecordRetrain counts a retraining run by outcome and records its duration.
func RecordRetrain(outcome string, took time.Duration) {
	globalManager.retrainRuns.WithLabelValues(outcome).Inc()
	globalManager.retrainDuration.Observe(float64(took.Milliseconds()))
}

// UpdateRetrainDatasetRows records the size of the last parsed dataset.
func UpdateRetrainDatasetRows(rows int) {
	globalManager.retrainDatasetRows.Set(float64(rows))
}

// UpdateQueueSize updates the retrain queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the retrain queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected retrain job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error for a specific HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
