// Package metrics provides Prometheus metrics for the vigil proctoring service.
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

// Manager manages all Prometheus metrics for the vigil service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Signal pipeline metrics
	framesIngested   prometheus.Counter
	framesDropped    prometheus.Counter
	signalEvents     *prometheus.CounterVec
	clientEvents     *prometheus.CounterVec
	escalations      prometheus.Counter
	inferenceLatency prometheus.Histogram
	inferenceErrors  prometheus.Counter

	// Session lifecycle metrics
	sessionsStarted    prometheus.Counter
	sessionsSubmitted  prometheus.Counter
	sessionsTerminated prometheus.Counter
	sessionsExpired    prometheus.Counter
	sessionsFinalized  *prometheus.CounterVec
	sessionsActive     prometheus.Gauge

	// Store metrics
	storeConflicts     prometheus.Counter
	storeRetries       prometheus.Counter
	storeUpdateLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vigil",
		subsystem:        "proctoring",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_ingested_total",
		Help:      "Total number of frame observations accepted by the rule engine",
	})

	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Total number of frame observations dropped by rate limiting",
	})

	m.signalEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "signal_events_total",
			Help:      "Total number of signal-derived integrity events by kind",
		},
		[]string{"kind"},
	)

	m.clientEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "client_events_total",
			Help:      "Total number of client-reported integrity events by kind",
		},
		[]string{"kind"},
	)

	m.escalations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "escalations_total",
		Help:      "Total number of sessions escalated to human review",
	})

	m.inferenceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_latency_milliseconds",
		Help:      "Histogram of combined face-presence/head-pose inference latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.inferenceErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_errors_total",
		Help:      "Total number of failed inference round trips",
	})

	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_started_total",
		Help:      "Total number of exam sessions created",
	})

	m.sessionsSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_submitted_total",
		Help:      "Total number of exam sessions submitted by candidates",
	})

	m.sessionsTerminated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_terminated_total",
		Help:      "Total number of exam sessions terminated by proctors",
	})

	m.sessionsExpired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_expired_total",
		Help:      "Total number of exam sessions closed by the lazy deadline check",
	})

	m.sessionsFinalized = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "sessions_finalized_total",
			Help:      "Total number of finalized sessions by outcome",
		},
		[]string{"outcome"},
	)

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_active",
		Help:      "Current number of in-progress exam sessions",
	})

	m.storeConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_conflicts_total",
		Help:      "Total number of optimistic-concurrency write rejections",
	})

	m.storeRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_retries_total",
		Help:      "Total number of write retries after a version conflict",
	})

	m.storeUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_update_latency_milliseconds",
		Help:      "Session store update latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
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

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Signal pipeline metrics functions.

// RecordFrameIngested increments the accepted-frame counter.
func RecordFrameIngested() {
	globalManager.framesIngested.Inc()
}

// RecordFrameDropped increments the rate-limited frame counter.
func RecordFrameDropped() {
	globalManager.framesDropped.Inc()
}

// RecordSignalEvent records a triggered signal-derived event by kind.
func RecordSignalEvent(kind string) {
	globalManager.signalEvents.WithLabelValues(kind).Inc()
}

// RecordClientEvent records a client-reported event by kind.
func RecordClientEvent(kind string) {
	globalManager.clientEvents.WithLabelValues(kind).Inc()
}

// RecordEscalation increments the escalation counter.
func RecordEscalation() {
	globalManager.escalations.Inc()
}

// RecordInferenceLatency records the combined inference round-trip latency.
func RecordInferenceLatency(latencyMs float64) {
	globalManager.inferenceLatency.Observe(latencyMs)
}

// RecordInferenceError increments the inference error counter.
func RecordInferenceError() {
	globalManager.inferenceErrors.Inc()
}

// Session lifecycle metrics functions.

// RecordSessionStarted increments the session-start counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionSubmitted increments the session-submit counter.
func RecordSessionSubmitted() {
	globalManager.sessionsSubmitted.Inc()
}

// RecordSessionTerminated increments the session-terminate counter.
func RecordSessionTerminated() {
	globalManager.sessionsTerminated.Inc()
}

// RecordSessionExpired increments the lazy-expiry counter.
func RecordSessionExpired() {
	globalManager.sessionsExpired.Inc()
}

// RecordSessionFinalized records a finalized session by outcome.
func RecordSessionFinalized(outcome string) {
	globalManager.sessionsFinalized.WithLabelValues(outcome).Inc()
}

// UpdateActiveSessions sets the in-progress session gauge.
func UpdateActiveSessions(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// Store metrics functions.

// RecordStoreConflict increments the version-conflict counter.
func RecordStoreConflict() {
	globalManager.storeConflicts.Inc()
}

// RecordStoreRetry increments the write-retry counter.
func RecordStoreRetry() {
	globalManager.storeRetries.Inc()
}

// RecordStoreUpdateLatency records a store update latency sample.
func RecordStoreUpdateLatency(latencyMs float64) {
	globalManager.storeUpdateLatency.Observe(latencyMs)
}

// HTTP metrics functions.

// RecordHTTPRequest records an HTTP request with endpoint, method, and status code.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Error metrics functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
