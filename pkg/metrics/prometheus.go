// Package metrics provides Prometheus metrics for the scorekeep service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the domain recorders.
const (
	OutcomeInserted  = "inserted"
	OutcomeImproved  = "improved"
	OutcomeUnchanged = "unchanged"
	OutcomeAdded     = "added"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeEnqueued  = "enqueued"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Persisted document store
	documentLoads         *prometheus.CounterVec
	documentCommits       *prometheus.CounterVec
	documentFailures      *prometheus.CounterVec
	documentCorrupt       *prometheus.CounterVec
	documentLoadLatency   *prometheus.HistogramVec
	documentCommitLatency *prometheus.HistogramVec
	documentBytes         *prometheus.HistogramVec

	// Update coordinator
	lockWaitLatency prometheus.Histogram
	lockedKeys      prometheus.Gauge
	mutations       *prometheus.CounterVec

	// Domain outcomes
	scoreSubmissions   *prometheus.CounterVec
	comments           *prometheus.CounterVec
	submissionsCreated *prometheus.CounterVec

	// Review pipeline
	reviewJobs    *prometheus.CounterVec
	reviewLatency prometheus.Histogram
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	workerCount   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorekeep",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.documentLoads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "document_loads_total",
		Help: "Documents loaded from durable storage, by backend",
	}, []string{"backend"})
	m.documentCommits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "document_commits_total",
		Help: "Documents committed to durable storage, by backend",
	}, []string{"backend"})
	m.documentFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "document_failures_total",
		Help: "Failed storage operations, by backend and operation",
	}, []string{"backend", "op"})
	m.documentCorrupt = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "document_corrupt_total",
		Help: "Malformed persisted documents replaced by an empty document on load",
	}, []string{"namespace"})
	m.documentLoadLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "document_load_seconds",
		Help:    "Latency of document loads",
		Buckets: m.histogramBuckets,
	}, []string{"backend"})
	m.documentCommitLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "document_commit_seconds",
		Help:    "Latency of atomic document commits",
		Buckets: m.histogramBuckets,
	}, []string{"backend"})
	m.documentBytes = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "document_bytes",
		Help:    "Size of committed documents",
		Buckets: prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"backend"})

	m.lockWaitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "coordinator_lock_wait_seconds",
		Help:    "Time spent waiting for exclusive access to a document",
		Buckets: m.histogramBuckets,
	})
	m.lockedKeys = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "coordinator_locked_keys",
		Help: "Document keys currently held or awaited",
	})
	m.mutations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "coordinator_mutations_total",
		Help: "Read-modify-write cycles by result (committed, unchanged, aborted, failed)",
	}, []string{"result"})

	m.scoreSubmissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "score_submissions_total",
		Help: "Leaderboard score submissions by outcome",
	}, []string{"outcome"})
	m.comments = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "comments_total",
		Help: "Submission comments by outcome",
	}, []string{"outcome"})
	m.submissionsCreated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "submissions_created_total",
		Help: "Submissions created, split by whether a machine score was attached",
	}, []string{"scored"})

	m.reviewJobs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "review_jobs_total",
		Help: "Review jobs by outcome",
	}, []string{"outcome"})
	m.reviewLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "review_latency_seconds",
		Help:    "Latency of the text-generation reviewer",
		Buckets: m.histogramBuckets,
	})
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "review_queue_size",
		Help: "Review jobs waiting in the queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "review_queue_capacity",
		Help: "Configured review queue capacity",
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "review_workers",
		Help: "Running review workers",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "type"})
}

// Storage.

func RecordDocumentLoad(backend string, seconds float64) {
	globalManager.documentLoads.WithLabelValues(backend).Inc()
	globalManager.documentLoadLatency.WithLabelValues(backend).Observe(seconds)
}

func RecordDocumentCommit(backend string, seconds float64, size int) {
	globalManager.documentCommits.WithLabelValues(backend).Inc()
	globalManager.documentCommitLatency.WithLabelValues(backend).Observe(seconds)
	globalManager.documentBytes.WithLabelValues(backend).Observe(float64(size))
}

func RecordDocumentFailure(backend, op string) {
	globalManager.documentFailures.WithLabelValues(backend, op).Inc()
}

func RecordDocumentCorrupt(namespace string) {
	globalManager.documentCorrupt.WithLabelValues(namespace).Inc()
}

// Coordinator.

func RecordLockWait(seconds float64) {
	globalManager.lockWaitLatency.Observe(seconds)
}

func UpdateLockedKeys(n int) {
	globalManager.lockedKeys.Set(float64(n))
}

func RecordMutation(result string) {
	globalManager.mutations.WithLabelValues(result).Inc()
}

// Domain.

func RecordScoreSubmission(outcome string) {
	globalManager.scoreSubmissions.WithLabelValues(outcome).Inc()
}

func RecordComment(outcome string) {
	globalManager.comments.WithLabelValues(outcome).Inc()
}

func RecordSubmissionCreated(scored bool) {
	label := "false"
	if scored {
		label = "true"
	}
	globalManager.submissionsCreated.WithLabelValues(label).Inc()
}

// Review pipeline.

func RecordReviewJob(outcome string) {
	globalManager.reviewJobs.WithLabelValues(outcome).Inc()
}

func RecordReviewLatency(seconds float64) {
	globalManager.reviewLatency.Observe(seconds)
}

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// RecordErrorByComponent counts an error attributed to a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
