package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics records calls made to the storefront REST backend.
type UpstreamMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	if reg == nil {
		return &UpstreamMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Duration of storefront API calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Storefront API calls by operation and status class.",
	}, []string{"operation", "status"})
	reg.MustRegister(duration, requests)
	return &UpstreamMetrics{duration: duration, requests: requests}
}

// Observe records one call. A zero status means the request never got a response.
func (u *UpstreamMetrics) Observe(operation string, status int, duration time.Duration) {
	if u == nil || u.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	u.duration.WithLabelValues(op).Observe(duration.Seconds())
	u.requests.WithLabelValues(op, statusClass(status)).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
