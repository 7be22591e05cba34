package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the gateway exports. Collectors live on a
// private registry so tests can build instances freely; the /metrics
// endpoint serves exactly this registry and nothing else.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	StageDuration   *prometheus.HistogramVec
	TextChars       prometheus.Histogram

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	PIIDetections       *prometheus.CounterVec
	InjectionDetections *prometheus.CounterVec
	DetectorFaults      *prometheus.CounterVec

	RateLimitDenied   *prometheus.CounterVec
	RateLimitDegraded prometheus.Counter

	BlockedRequests prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_http_requests_total",
			Help: "HTTP requests served, by method, route, and status code",
		},
		[]string{"method", "route", "code"},
	)
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_requests_total",
			Help: "Total requests processed, by outcome",
		},
		[]string{"status"},
	)
	m.RequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reflexgate_request_duration_milliseconds",
			Help:    "End-to-end processing duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		},
	)
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reflexgate_stage_duration_milliseconds",
			Help:    "Pipeline stage duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"stage"},
	)
	m.TextChars = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reflexgate_text_chars",
			Help:    "Input text length in characters",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536, 262144},
		},
	)
	m.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflexgate_cache_hits_total",
			Help: "Verdict cache hits",
		},
	)
	m.CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflexgate_cache_misses_total",
			Help: "Verdict cache misses",
		},
	)
	m.PIIDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_pii_detections_total",
			Help: "Sensitive-data matches, by pattern",
		},
		[]string{"pattern"},
	)
	m.InjectionDetections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_injection_detections_total",
			Help: "Injection matches, by severity",
		},
		[]string{"severity"},
	)
	m.DetectorFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_detector_faults_total",
			Help: "Pattern lanes that faulted and were skipped",
		},
		[]string{"detector"},
	)
	m.RateLimitDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflexgate_ratelimit_denied_total",
			Help: "Rate limit denials, by dimension",
		},
		[]string{"dimension"},
	)
	m.RateLimitDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflexgate_ratelimit_degraded_total",
			Help: "Rate limit decisions taken without the backing store",
		},
	)
	m.BlockedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflexgate_blocked_requests_total",
			Help: "Requests refused outright for high-severity injection",
		},
	)

	m.registry.MustRegister(
		m.HTTPRequests,
		m.RequestsTotal,
		m.RequestDuration,
		m.StageDuration,
		m.TextChars,
		m.CacheHits,
		m.CacheMisses,
		m.PIIDetections,
		m.InjectionDetections,
		m.DetectorFaults,
		m.RateLimitDenied,
		m.RateLimitDegraded,
		m.BlockedRequests,
	)
	return m
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
