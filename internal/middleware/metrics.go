package middleware

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNamespace prefixes every collector exported by this package.
const MetricsNamespace = "reelcast"

// Fully qualified metric names.
const (
	MetricHTTPRequestsTotal        = "reelcast_http_requests_total"
	MetricHTTPRequestDuration      = "reelcast_http_request_duration_seconds"
	MetricHTTPResponseSizeBytes    = "reelcast_http_response_size_bytes"
	MetricHTTPInFlight             = "reelcast_http_requests_in_flight"
	MetricRateLimitDecisions       = "reelcast_ratelimit_decisions_total"
	MetricRateLimitStoreErrors     = "reelcast_ratelimit_store_errors_total"
	MetricIdempotencyReplays       = "reelcast_idempotency_replays_total"
	MetricIdempotencyStoreFailures = "reelcast_idempotency_store_errors_total"
)

// Rate limit outcomes recorded on MetricRateLimitDecisions.
const (
	OutcomeAllowed = "allowed"
	OutcomeBlocked = "blocked"
)

// Metrics holds the collectors shared by the HTTP middleware. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	limitDecisions   *prometheus.CounterVec
	limitStoreErrors *prometheus.CounterVec

	replays          *prometheus.CounterVec
	idempotencyFails *prometheus.CounterVec
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status_class"}),
		// Tracking endpoints answer in a few milliseconds; reports scan
		// analytics tables and can take seconds.
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size by route.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		limitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit checks by policy, key type and outcome.",
		}, []string{"policy", "key_type", "outcome"}),
		limitStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "ratelimit",
			Name:      "store_errors_total",
			Help:      "Rate limit store failures; the request was allowed.",
		}, []string{"policy"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "idempotency",
			Name:      "replays_total",
			Help:      "Responses served from the idempotency store.",
		}, []string{"route"}),
		idempotencyFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "idempotency",
			Name:      "store_errors_total",
			Help:      "Idempotency store failures by operation.",
		}, []string{"route", "op"}),
	}
}

// Collectors lists every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests, m.duration, m.responseSize, m.inFlight,
		m.limitDecisions, m.limitStoreErrors,
		m.replays, m.idempotencyFails,
	}
}

// Register adds all collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// statusClass folds a status code into "2xx", "4xx" and so on.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

func (m *Metrics) observeRequest(method, route string, status int, seconds float64, size int64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(seconds)
	m.responseSize.WithLabelValues(route).Observe(float64(size))
}

func (m *Metrics) trackInFlight(delta float64) {
	if m != nil {
		m.inFlight.Add(delta)
	}
}

func (m *Metrics) recordLimitDecision(policy, keyType string, allowed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeBlocked
	}
	m.limitDecisions.WithLabelValues(policy, keyType, outcome).Inc()
}

func (m *Metrics) recordLimitStoreError(policy string) {
	if m != nil {
		m.limitStoreErrors.WithLabelValues(policy).Inc()
	}
}

func (m *Metrics) recordReplay(route string) {
	if m != nil {
		m.replays.WithLabelValues(route).Inc()
	}
}

func (m *Metrics) recordIdempotencyError(route, op string) {
	if m != nil {
		m.idempotencyFails.WithLabelValues(route, op).Inc()
	}
}
