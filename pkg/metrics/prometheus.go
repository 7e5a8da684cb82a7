// Package metrics provides Prometheus metrics for the movie Elo service.
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
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Rating engine
	votes            prometheus.Counter
	voteDelta        prometheus.Histogram
	imports          *prometheus.CounterVec
	moviesSeeded     prometheus.Counter
	moviesAdded      prometheus.Counter
	importSkipped    prometheus.Counter
	mergeOffset      prometheus.Histogram
	mergeAdjusted    prometheus.Counter
	selectorAttempts prometheus.Histogram
	selectorRelaxed  prometheus.Counter
	selectorFailures prometheus.Counter
	activeSessions   prometheus.Gauge
	pendingMatchups  prometheus.Gauge

	// Poster lookups
	posterLookups      *prometheus.CounterVec
	posterCacheHits    prometheus.Counter
	posterBreakerState prometheus.Gauge

	// Queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerActive       prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter

	// Storage
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // singleton used by the Record* helpers

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "movielo",
		subsystem:        "elo",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
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

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	latencyMs := []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

	m.votes = m.counter("votes_total", "Total number of recorded votes")
	m.voteDelta = m.histogram("vote_delta_points", "Elo points gained by the winner of a vote",
		[]float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32})
	m.imports = m.counterVec("imports_total", "Total number of rating imports by kind", "kind")
	m.moviesSeeded = m.counter("movies_seeded_total", "Movies placed by a cold-start seed")
	m.moviesAdded = m.counter("movies_added_total", "Movies added by an incremental merge")
	m.importSkipped = m.counter("import_rows_skipped_total", "Import rows dropped as duplicates or invalid")
	m.mergeOffset = m.histogram("merge_offset_points", "Rounded drift of a merged batch from the target mean",
		[]float64{-10, -5, -2, -1, 0, 1, 2, 5, 10})
	m.mergeAdjusted = m.counter("merge_adjusted_total", "Existing movies shifted by mean correction")
	m.selectorAttempts = m.histogram("selector_attempts", "Draws needed to select a matchup",
		[]float64{1, 2, 3, 5, 10, 20, 50, 100, 250})
	m.selectorRelaxed = m.counter("selector_relaxed_total", "Matchups served from the recent window")
	m.selectorFailures = m.counter("selector_failures_total", "Matchup selections that failed")
	m.activeSessions = m.gauge("sessions_active", "Owners with a live comparison session")
	m.pendingMatchups = m.gauge("matchups_pending", "Matchups presented and not yet voted on")

	m.posterLookups = m.counterVec("poster_lookups_total", "Poster lookups by result", "result")
	m.posterCacheHits = m.counter("poster_cache_hits_total", "Poster requests answered from cache")
	m.posterBreakerState = m.gauge("poster_breaker_state", "Poster circuit breaker state (0 closed, 1 half-open, 2 open)")

	m.queueSize = m.gauge("queue_size", "Current number of poster jobs queued")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of poster jobs queued")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Poster jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Poster jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Poster jobs rejected by the queue")
	m.workerActive = m.gauge("workers_active", "Poster workers currently running")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Poster job processing latency", latencyMs)
	m.workerErrors = m.counter("worker_errors_total", "Poster jobs that failed")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", latencyMs, "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds", "HTTP request duration in seconds",
		m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Last GC pause in milliseconds", latencyMs)
}

// RecordVote counts a vote and the winner's gain.
func (m *Manager) RecordVote(winnerDelta int) {
	if !m.enabled {
		return
	}
	m.votes.Inc()
	m.voteDelta.Observe(float64(winnerDelta))
}

// RecordImport records one import: kind is "seed" or "merge".
func (m *Manager) RecordImport(kind string, placed, skipped int) {
	if !m.enabled {
		return
	}
	m.imports.WithLabelValues(kind).Inc()
	if kind == "seed" {
		m.moviesSeeded.Add(float64(placed))
	} else {
		m.moviesAdded.Add(float64(placed))
	}
	m.importSkipped.Add(float64(skipped))
}

// RecordMerge records the drift of a merged batch and how many movies absorbed it.
func (m *Manager) RecordMerge(offset, adjusted int) {
	if !m.enabled {
		return
	}
	m.mergeOffset.Observe(float64(offset))
	m.mergeAdjusted.Add(float64(adjusted))
}

// RecordSelection records a successful matchup selection.
func (m *Manager) RecordSelection(attempts int, relaxed bool) {
	if !m.enabled {
		return
	}
	m.selectorAttempts.Observe(float64(attempts))
	if relaxed {
		m.selectorRelaxed.Inc()
	}
}

// Package-level recorders over the global manager.

// RecordVote counts a vote and the winner's gain.
func RecordVote(winnerDelta int) { globalManager.RecordVote(winnerDelta) }

// RecordImport records one import: kind is "seed" or "merge".
func RecordImport(kind string, placed, skipped int) {
	globalManager.RecordImport(kind, placed, skipped)
}

// RecordMerge records the drift of a merged batch.
func RecordMerge(offset, adjusted int) { globalManager.RecordMerge(offset, adjusted) }

// RecordSelection records a successful matchup selection.
func RecordSelection(attempts int, relaxed bool) { globalManager.RecordSelection(attempts, relaxed) }

// RecordSelectionFailure counts a failed matchup selection.
func RecordSelectionFailure() { globalManager.selectorFailures.Inc() }

// UpdateActiveSessions sets the number of live comparison sessions.
func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

// UpdatePendingMatchups sets the number of unanswered matchups.
func UpdatePendingMatchups(n int) { globalManager.pendingMatchups.Set(float64(n)) }

// RecordPosterLookup counts a poster lookup by result: found, not_found or error.
func RecordPosterLookup(result string) { globalManager.posterLookups.WithLabelValues(result).Inc() }

// RecordPosterCacheHit counts a poster served from cache.
func RecordPosterCacheHit() { globalManager.posterCacheHits.Inc() }

// UpdatePosterBreakerState sets the breaker state gauge.
func UpdatePosterBreakerState(state int) { globalManager.posterBreakerState.Set(float64(state)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActive.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
