package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating metrics
	votesApplied   prometheus.Counter
	votesRejected  *prometheus.CounterVec
	votesDuplicate prometheus.Counter
	ratingDelta    prometheus.Histogram
	elementsTotal  prometheus.Gauge

	// Selector metrics
	duelsServed     prometheus.Counter
	duelsExhausted  prometheus.Counter
	selectorLatency prometheus.Histogram

	// Session analytics metrics
	flushEnqueued     prometheus.Counter
	flushDropped      *prometheus.CounterVec
	flushApplied      *prometheus.CounterVec
	sessionBufferSize prometheus.Gauge
	sessionEvictions  prometheus.Counter

	// Flush queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// Store and read side
	storeLatency *prometheus.HistogramVec
	statsLatency *prometheus.HistogramVec
	verdicts     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
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

// Configure rebuilds the global manager on a fresh registry with opts
// applied. It must run before any metric is recorded or served.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "redflag",
		subsystem:        "duel",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.votesApplied = m.counter("votes_applied_total", "Votes committed to the rating store")
	m.votesRejected = m.counterVec("votes_rejected_total", "Votes rejected before commit", "reason")
	m.votesDuplicate = m.counter("votes_duplicate_total", "Retried votes ignored by vote id")
	m.ratingDelta = m.histogram("rating_delta_points", "Global rating change per vote",
		[]float64{0.5, 1, 2, 4, 8, 12, 16, 20, 24, 32, 48})
	m.elementsTotal = m.gauge("elements_total", "Elements known to the rating store")

	m.duelsServed = m.counter("duels_served_total", "Duel pairs handed to players")
	m.duelsExhausted = m.counter("duels_exhausted_total", "Next-duel requests answered with exhaustion")
	m.selectorLatency = m.histogram("selector_latency_milliseconds", "Pair selection latency", m.histogramBuckets)

	m.flushEnqueued = m.counter("session_flush_enqueued_total", "Session flushes accepted onto the queue")
	m.flushDropped = m.counterVec("session_flush_dropped_total", "Session flushes dropped", "reason")
	m.flushApplied = m.counterVec("session_flush_applied_total", "Session flushes applied to the buffer", "outcome")
	m.sessionBufferSize = m.gauge("session_buffer_size", "Sessions held in the analytics buffer")
	m.sessionEvictions = m.counter("session_evictions_total", "Sessions evicted from the analytics buffer")

	m.queueSize = m.gauge("flush_queue_size", "Flushes waiting on the queue")
	m.queueCapacity = m.gauge("flush_queue_capacity", "Flush queue capacity")
	m.workerCount = m.gauge("flush_worker_count", "Flush workers running")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Rating store operation latency", "op")
	m.statsLatency = m.histogramVec("stats_latency_milliseconds", "Aggregation latency by view", "view")
	m.verdicts = m.counterVec("verdicts_total", "Free-text verdicts recorded", "kind")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordVoteApplied counts a committed vote and its global rating change.
func RecordVoteApplied(globalDelta float64) {
	if !on() {
		return
	}
	globalManager.votesApplied.Inc()
	globalManager.ratingDelta.Observe(globalDelta)
}

// RecordVoteRejected counts a rejected vote by reason.
func RecordVoteRejected(reason string) {
	if on() {
		globalManager.votesRejected.WithLabelValues(reason).Inc()
	}
}

// RecordVoteDuplicate counts a vote ignored because its id was already seen.
func RecordVoteDuplicate() {
	if on() {
		globalManager.votesDuplicate.Inc()
	}
}

// UpdateElementsTotal sets the element gauge.
func UpdateElementsTotal(n int) {
	if on() {
		globalManager.elementsTotal.Set(float64(n))
	}
}

// RecordDuelServed counts a pair handed out.
func RecordDuelServed() {
	if on() {
		globalManager.duelsServed.Inc()
	}
}

// RecordDuelExhausted counts an exhaustion answer.
func RecordDuelExhausted() {
	if on() {
		globalManager.duelsExhausted.Inc()
	}
}

// RecordSelectorLatency records pair selection latency in milliseconds.
func RecordSelectorLatency(latencyMs float64) {
	if on() {
		globalManager.selectorLatency.Observe(latencyMs)
	}
}

// RecordFlushEnqueued counts a flush accepted onto the queue.
func RecordFlushEnqueued() {
	if on() {
		globalManager.flushEnqueued.Inc()
	}
}

// RecordFlushDropped counts a dropped flush by reason.
func RecordFlushDropped(reason string) {
	if on() {
		globalManager.flushDropped.WithLabelValues(reason).Inc()
	}
}

// RecordFlushApplied counts a flush applied to the buffer by outcome
// (inserted, replaced, stale).
func RecordFlushApplied(outcome string) {
	if on() {
		globalManager.flushApplied.WithLabelValues(outcome).Inc()
	}
}

// UpdateSessionBufferSize sets the buffer size gauge.
func UpdateSessionBufferSize(n int) {
	if on() {
		globalManager.sessionBufferSize.Set(float64(n))
	}
}

// RecordSessionEvictions counts evicted sessions.
func RecordSessionEvictions(n int) {
	if on() && n > 0 {
		globalManager.sessionEvictions.Add(float64(n))
	}
}

// UpdateQueueSize sets the flush queue size gauge.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the flush queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateWorkerCount sets the flush worker gauge.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordStoreLatency records a store operation latency in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	if on() {
		globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
	}
}

// RecordStatsLatency records an aggregation latency in milliseconds.
func RecordStatsLatency(view string, latencyMs float64) {
	if on() {
		globalManager.statsLatency.WithLabelValues(view).Observe(latencyMs)
	}
}

// RecordVerdict counts a recorded verdict.
func RecordVerdict(kind string) {
	if on() {
		globalManager.verdicts.WithLabelValues(kind).Inc()
	}
}

// RecordHTTPRequest counts an HTTP request.
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

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if on() {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if on() {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if on() {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if on() {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
