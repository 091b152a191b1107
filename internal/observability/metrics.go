package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the engine's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decisions       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	auditQueueDepth prometheus.Gauge
	auditDrops      prometheus.Counter
	auditRetries    prometheus.Counter
}

// NewMetrics initialises the registry and collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgergate_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledgergate_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgergate_authz_decisions_total",
		Help: "Authorization decisions partitioned by layer and outcome.",
	}, []string{"layer", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgergate_workflow_transitions_total",
		Help: "Budget workflow transitions partitioned by action.",
	}, []string{"action"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledgergate_audit_queue_depth",
		Help: "Entries waiting in the audit retry queue.",
	})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgergate_audit_dropped_total",
		Help: "Audit entries dropped because the retry queue was full.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgergate_audit_retries_total",
		Help: "Audit entries that needed at least one retry.",
	})
	registry.MustRegister(requests, duration, decisions, transitions, queueDepth, drops, retries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		decisions:       decisions,
		transitions:     transitions,
		auditQueueDepth: queueDepth,
		auditDrops:      drops,
		auditRetries:    retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Decision counts one authorization decision.
func (m *Metrics) Decision(layer, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(layer, outcome).Inc()
}

// Transition counts one workflow transition.
func (m *Metrics) Transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

// AuditQueueDepth records the current retry queue depth.
func (m *Metrics) AuditQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.auditQueueDepth.Set(float64(depth))
}

// AuditDropped counts an entry dropped from a full retry queue.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDrops.Inc()
}

// AuditRetried counts an entry that failed its first write.
func (m *Metrics) AuditRetried() {
	if m == nil {
		return
	}
	m.auditRetries.Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
