package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type marketMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics
)

// MarketMetrics returns the lazily-initialised metrics registry used to record
// JSON-RPC market activity.
func MarketMetrics() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC error responses segmented by method and code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "marketchain",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "JSON-RPC request latency segmented by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(marketRegistry.requests, marketRegistry.errors, marketRegistry.latency)
	})
	return marketRegistry
}

// ObserveRequest records one completed request.
func (m *marketMetrics) ObserveRequest(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	method = normalizeLabel(method)
	m.requests.WithLabelValues(method, normalizeLabel(outcome)).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveError records one error response.
func (m *marketMetrics) ObserveError(method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(normalizeLabel(method), normalizeLabel(code)).Inc()
}

func normalizeLabel(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
