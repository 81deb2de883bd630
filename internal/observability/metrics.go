package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research agent service.
// Metrics are organized by subsystem: runs, stages, searches, sources,
// backend requests, and LLM operations. All collectors are registered via
// promauto with the default Prometheus registry.
type Metrics struct {
	// RunsStarted counts the total number of research runs initiated.
	RunsStarted prometheus.Counter

	// RunsCompleted counts runs that finished with a report.
	RunsCompleted prometheus.Counter

	// RunsFailed counts runs that ended with an error status.
	RunsFailed prometheus.Counter

	// RunsCancelled counts runs cancelled by a user or the system.
	RunsCancelled prometheus.Counter

	// RunDuration observes the end-to-end duration of runs in seconds.
	RunDuration prometheus.Histogram

	// StageDuration observes stage duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// StageFailures counts stages that set the error status, labeled by stage.
	StageFailures *prometheus.CounterVec

	// SearchesStarted counts searches initiated, labeled by backend.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by backend.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by backend.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by backend.
	SearchDuration *prometheus.HistogramVec

	// ResultsPerSearch observes the number of results per search, labeled by backend.
	ResultsPerSearch *prometheus.HistogramVec

	// SourcesDiscovered counts sources kept by the researcher, labeled by source type.
	SourcesDiscovered *prometheus.CounterVec

	// SourcesFiltered counts sources the analyzer rejected as irrelevant.
	SourcesFiltered prometheus.Counter

	// FindingsExtracted counts findings produced by the analyzer.
	FindingsExtracted prometheus.Counter

	// SourcesValidated counts critic URL checks, labeled by verdict (trusted, unverified).
	SourcesValidated *prometheus.CounterVec

	// BackendRequestsTotal counts HTTP requests to search backends, labeled by backend and endpoint.
	BackendRequestsTotal *prometheus.CounterVec

	// BackendRequestsFailed counts failed HTTP requests, labeled by backend, endpoint, and error type.
	BackendRequestsFailed *prometheus.CounterVec

	// BackendRequestDuration observes HTTP request duration to search backends in seconds.
	BackendRequestDuration *prometheus.HistogramVec

	// BackendRateLimited counts 429 responses from search backends, labeled by backend.
	BackendRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts model invocations, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed model invocations, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes model invocation duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// EventsPublished counts lifecycle events delivered, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts lifecycle events that could not be delivered, labeled by event type.
	EventsFailed *prometheus.CounterVec

	// HTTPRequestsTotal counts API requests, labeled by method, route pattern and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes API request duration in seconds, labeled by method and route pattern.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Runs
		RunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of research runs started",
		}),
		RunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of research runs completed successfully",
		}),
		RunsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total number of research runs that ended in error",
		}),
		RunsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_cancelled_total",
			Help:      "Total number of research runs cancelled",
		}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of research runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),

		// Stages
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds by stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline stages that recorded an error",
		}, []string{"stage"}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of searches started by backend",
		}, []string{"backend"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of searches completed by backend",
		}, []string{"backend"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of searches that failed by backend",
		}, []string{"backend"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds by backend",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"backend"}),
		ResultsPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "results_per_search",
			Help:      "Number of results returned per search by backend",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 10, 20},
		}, []string{"backend"}),

		// Sources and findings
		SourcesDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_discovered_total",
			Help:      "Total number of sources kept by the researcher by type",
		}, []string{"source_type"}),
		SourcesFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_filtered_total",
			Help:      "Total number of sources rejected as irrelevant",
		}),
		FindingsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_extracted_total",
			Help:      "Total number of findings extracted",
		}),
		SourcesValidated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_validated_total",
			Help:      "Total number of source URLs scored by the critic by verdict",
		}, []string{"verdict"}),

		// Backend requests
		BackendRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests to search backends",
		}, []string{"backend", "endpoint"}),
		BackendRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_failed_total",
			Help:      "Total number of failed requests to search backends",
		}, []string{"backend", "endpoint", "error_type"}),
		BackendRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of requests to search backends in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend", "endpoint"}),
		BackendRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_rate_limited_total",
			Help:      "Total number of rate limit responses from search backends",
		}, []string{"backend"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of lifecycle events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of lifecycle events that failed to publish by type",
		}, []string{"event_type"}),

		// HTTP API
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordRunStarted records that a run has started.
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunCompleted records that a run has completed.
func (m *Metrics) RecordRunCompleted(durationSeconds float64) {
	m.RunsCompleted.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunFailed records that a run ended in error.
func (m *Metrics) RecordRunFailed(durationSeconds float64) {
	m.RunsFailed.Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordRunCancelled records that a run has been cancelled.
func (m *Metrics) RecordRunCancelled() {
	m.RunsCancelled.Inc()
}

// RecordStage records a finished stage and whether it set the error status.
func (m *Metrics) RecordStage(stage string, durationSeconds float64, failed bool) {
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if failed {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(backend string) {
	m.SearchesStarted.WithLabelValues(backend).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(backend string, resultCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(backend).Inc()
	m.SearchDuration.WithLabelValues(backend).Observe(durationSeconds)
	m.ResultsPerSearch.WithLabelValues(backend).Observe(float64(resultCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(backend string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(backend).Inc()
	m.SearchDuration.WithLabelValues(backend).Observe(durationSeconds)
}

// RecordSourcesDiscovered records sources kept for a source type.
func (m *Metrics) RecordSourcesDiscovered(sourceType string, count int) {
	m.SourcesDiscovered.WithLabelValues(sourceType).Add(float64(count))
}

// RecordSourcesFiltered records sources rejected as irrelevant.
func (m *Metrics) RecordSourcesFiltered(count int) {
	m.SourcesFiltered.Add(float64(count))
}

// RecordFindingsExtracted records findings produced by the analyzer.
func (m *Metrics) RecordFindingsExtracted(count int) {
	m.FindingsExtracted.Add(float64(count))
}

// RecordSourceValidated records one critic URL check.
func (m *Metrics) RecordSourceValidated(trusted bool) {
	verdict := "unverified"
	if trusted {
		verdict = "trusted"
	}
	m.SourcesValidated.WithLabelValues(verdict).Inc()
}

// RecordBackendRequest records a request to a search backend.
func (m *Metrics) RecordBackendRequest(backend, endpoint string, durationSeconds float64) {
	m.BackendRequestsTotal.WithLabelValues(backend, endpoint).Inc()
	m.BackendRequestDuration.WithLabelValues(backend, endpoint).Observe(durationSeconds)
}

// RecordBackendRequestFailed records a failed request to a search backend.
func (m *Metrics) RecordBackendRequestFailed(backend, endpoint, errorType string) {
	m.BackendRequestsFailed.WithLabelValues(backend, endpoint, errorType).Inc()
}

// RecordBackendRateLimited records a rate limit response from a backend.
func (m *Metrics) RecordBackendRateLimited(backend string) {
	m.BackendRateLimited.WithLabelValues(backend).Inc()
}

// RecordLLMRequest records a successful model invocation.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed model invocation.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordEventPublished records a delivered lifecycle event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a lifecycle event that could not be delivered.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records a served API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
