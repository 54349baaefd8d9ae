package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	commandsApplied     *prometheus.CounterVec
	commitsRejected     prometheus.Counter
	undoTotal           prometheus.Counter
	redoTotal           prometheus.Counter
	searchRequests      prometheus.Counter
	searchStaleDropped  prometheus.Counter
	persistenceFailures prometheus.Counter
}

// New creates a fresh Metrics registry with HTTP and editor metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by editor-core",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pondops",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by editor-core",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	commandsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "editor_commands_applied_total",
		Help:      "Count of draw commands applied to editor sessions",
	}, []string{"kind"})

	commitsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "editor_commits_rejected_total",
		Help:      "Count of geometry commits rejected by validation",
	})

	undoTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "editor_undo_total",
		Help:      "Count of undo operations across sessions",
	})

	redoTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "editor_redo_total",
		Help:      "Count of redo operations across sessions",
	})

	searchRequests := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "search_requests_total",
		Help:      "Count of geocoding requests issued after debounce",
	})

	searchStaleDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "search_stale_responses_dropped_total",
		Help:      "Count of geocoding responses discarded by the generation guard",
	})

	persistenceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pondops",
		Name:      "editor_persistence_failures_total",
		Help:      "Count of failed persistence calls that triggered a compensating undo",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		commandsApplied,
		commitsRejected,
		undoTotal,
		redoTotal,
		searchRequests,
		searchStaleDropped,
		persistenceFailures,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		commandsApplied:     commandsApplied,
		commitsRejected:     commitsRejected,
		undoTotal:           undoTotal,
		redoTotal:           redoTotal,
		searchRequests:      searchRequests,
		searchStaleDropped:  searchStaleDropped,
		persistenceFailures: persistenceFailures,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncCommandApplied counts an applied draw command by kind.
func (m *Metrics) IncCommandApplied(kind string) {
	if m == nil {
		return
	}
	m.commandsApplied.WithLabelValues(kind).Inc()
}

// IncCommitRejected counts a geometry commit rejected by validation.
func (m *Metrics) IncCommitRejected() {
	if m == nil {
		return
	}
	m.commitsRejected.Inc()
}

// IncUndo counts an undo operation.
func (m *Metrics) IncUndo() {
	if m == nil {
		return
	}
	m.undoTotal.Inc()
}

// IncRedo counts a redo operation.
func (m *Metrics) IncRedo() {
	if m == nil {
		return
	}
	m.redoTotal.Inc()
}

// IncSearchRequest counts a geocoding request issued after the debounce fired.
func (m *Metrics) IncSearchRequest() {
	if m == nil {
		return
	}
	m.searchRequests.Inc()
}

// IncSearchStaleDropped counts a stale geocoding response dropped by the
// generation guard.
func (m *Metrics) IncSearchStaleDropped() {
	if m == nil {
		return
	}
	m.searchStaleDropped.Inc()
}

// IncPersistenceFailure counts a persistence call failure.
func (m *Metrics) IncPersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
