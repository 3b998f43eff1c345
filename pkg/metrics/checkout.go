package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order submission outcomes.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	placed   *prometheus.CounterVec
	failed   *prometheus.CounterVec
	payments *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submission_duration_seconds",
		Help:    "Duration of order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_placed_total",
		Help: "Orders placed, by payment method.",
	}, []string{"method"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_failed_total",
		Help: "Order submissions that failed, by payment method.",
	}, []string{"method"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payment_outcomes_total",
		Help: "Hosted payment widget outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(duration, placed, failed, payments)
	return &CheckoutMetrics{
		duration: duration,
		placed:   placed,
		failed:   failed,
		payments: payments,
	}
}

// ObserveSubmission records how long a submission for the method took.
func (c *CheckoutMetrics) ObserveSubmission(method string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncPlaced increments the placed counter for the method.
func (c *CheckoutMetrics) IncPlaced(method string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFailed increments the failed counter for the method.
func (c *CheckoutMetrics) IncFailed(method string) {
	if c == nil || c.failed == nil {
		return
	}
	c.failed.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncPaymentOutcome counts a widget outcome.
func (c *CheckoutMetrics) IncPaymentOutcome(outcome string) {
	if c == nil || c.payments == nil {
		return
	}
	c.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
