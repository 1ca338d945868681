// Package metrics provides Prometheus metrics for the bingo progress
// and effects engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the bingo service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Event pipeline
	eventsProcessed   prometheus.Counter
	eventsDuplicate   prometheus.Counter
	eventsUnsupported prometheus.Counter
	normalizeErrors   prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Tile progress
	progressUpdates  prometheus.Counter
	tilesCompleted   prometheus.Counter
	tiersCompleted   prometheus.Counter
	pointsAwarded    prometheus.Counter
	versionConflicts prometheus.Counter
	lookupFailures   prometheus.Counter

	// Effects
	linesCompleted   prometheus.Counter
	effectsGranted   prometheus.Counter
	effectsActivated prometheus.Counter
	effectsBlocked   prometheus.Counter
	effectsReflected prometheus.Counter
	effectsExpired   prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "bingo",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		})
	}

	m.eventsProcessed = counter("events_processed_total", "Game events accepted into the pipeline")
	m.eventsDuplicate = counter("events_duplicate_total", "Duplicate event deliveries rejected by the deduper")
	m.eventsUnsupported = counter("events_unsupported_total", "Raw events skipped as unsupported or non-qualifying")
	m.normalizeErrors = counter("events_normalize_errors_total", "Raw events dropped due to malformed payloads")

	m.queueSize = gauge("queue_size", "Current number of queued events across all shards")
	m.queueCapacity = gauge("queue_capacity", "Configured queue capacity")
	m.queueUtilization = gauge("queue_utilization", "Queue fill ratio 0..1")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Events dequeued by workers")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Enqueue rejections (backpressure or closed)")

	m.workerCount = gauge("worker_count", "Number of shard workers")
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "End-to-end latency of one event through the orchestrator",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = counter("worker_errors_total", "Events whose processing returned an error")

	m.progressUpdates = counter("tile_progress_updates_total", "Tile progress rows written")
	m.tilesCompleted = counter("tiles_completed_total", "Tiles newly completed")
	m.tiersCompleted = counter("tiers_completed_total", "Tiers newly completed, cascades included")
	m.pointsAwarded = counter("points_awarded_total", "Points credited to team scores")
	m.versionConflicts = counter("progress_version_conflicts_total", "Optimistic-concurrency retries on progress writes")
	m.lookupFailures = counter("skill_lookup_failures_total", "Skill-lookup calls that degraded to no progress change")

	m.linesCompleted = counter("lines_completed_total", "Rows and columns recorded complete")
	m.effectsGranted = counter("effects_granted_total", "Effects granted to teams")
	m.effectsActivated = counter("effects_activated_total", "Effect activations that executed")
	m.effectsBlocked = counter("effects_blocked_total", "Activations blocked by a shield")
	m.effectsReflected = counter("effects_reflected_total", "Activations redirected by a reflect")
	m.effectsExpired = counter("effects_expired_total", "Earned effects expired by the sweep")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method, and status",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Errors by component and type",
		},
		[]string{"component", "error_type"},
	)
}

// Package-level helpers against the global manager.

func RecordEventProcessed()   { globalManager.eventsProcessed.Inc() }
func RecordEventDuplicate()   { globalManager.eventsDuplicate.Inc() }
func RecordEventUnsupported() { globalManager.eventsUnsupported.Inc() }
func RecordNormalizeError()   { globalManager.normalizeErrors.Inc() }

func UpdateQueueSize(size int)                 { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)         { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(ratio float64)     { globalManager.queueUtilization.Set(ratio) }
func RecordQueueEnqueue()                      { globalManager.queueEnqueueRate.Inc() }
func RecordQueueDequeue()                      { globalManager.queueDequeueRate.Inc() }
func RecordQueueEnqueueError()                 { globalManager.queueEnqueueErrors.Inc() }
func UpdateWorkerCount(count int)              { globalManager.workerCount.Set(float64(count)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }
func RecordWorkerError()                       { globalManager.workerErrors.Inc() }

func RecordProgressUpdate()         { globalManager.progressUpdates.Inc() }
func RecordTileCompleted()          { globalManager.tilesCompleted.Inc() }
func RecordTiersCompleted(n int)    { globalManager.tiersCompleted.Add(float64(n)) }
func RecordPointsAwarded(pts int64) { globalManager.pointsAwarded.Add(float64(pts)) }
func RecordVersionConflict()        { globalManager.versionConflicts.Inc() }
func RecordSkillLookupFailure()     { globalManager.lookupFailures.Inc() }

func RecordLineCompleted()       { globalManager.linesCompleted.Inc() }
func RecordEffectGranted()       { globalManager.effectsGranted.Inc() }
func RecordEffectActivated()     { globalManager.effectsActivated.Inc() }
func RecordEffectBlocked()       { globalManager.effectsBlocked.Inc() }
func RecordEffectReflected()     { globalManager.effectsReflected.Inc() }
func RecordEffectsExpired(n int) { globalManager.effectsExpired.Add(float64(n)) }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
