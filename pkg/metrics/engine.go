package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records checkout, payment, and refund outcomes.
type EngineMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	payments         *prometheus.CounterVec
	refunds          *prometheus.CounterVec
	stockRejections  prometheus.Counter
}

// NewEngineMetrics registers the transaction engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by payment method and outcome.",
	}, []string{"method", "outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Online payment verification attempts by outcome.",
	}, []string{"outcome"})
	refunds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts by outcome.",
	}, []string{"outcome"})
	stockRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_rejections_total",
		Help: "Checkout lines rejected for insufficient stock.",
	})
	reg.MustRegister(checkoutDuration, checkouts, payments, refunds, stockRejections)
	return &EngineMetrics{
		checkoutDuration: checkoutDuration,
		checkouts:        checkouts,
		payments:         payments,
		refunds:          refunds,
		stockRejections:  stockRejections,
	}
}

// ObserveCheckout records the duration and outcome of one checkout attempt.
func (m *EngineMetrics) ObserveCheckout(method string, outcome string, duration time.Duration) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncPaymentVerification counts one verification attempt.
func (m *EngineMetrics) IncPaymentVerification(outcome string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRefund counts one refund attempt.
func (m *EngineMetrics) IncRefund(outcome string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncStockRejection counts a line rejected for insufficient stock.
func (m *EngineMetrics) IncStockRejection() {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
