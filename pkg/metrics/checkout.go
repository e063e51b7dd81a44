package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records the checkout state machine and payment side calls.
type CheckoutMetrics struct {
	transitions     *prometheus.CounterVec
	partialFailures *prometheus.CounterVec
	intentDuration  *prometheus.HistogramVec
	orders          *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_state_transitions_total",
		Help: "Checkout state machine transitions.",
	}, []string{"from", "to"})
	partialFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_partial_failures_total",
		Help: "Payments that succeeded while the order could not be recorded.",
	}, []string{"payment_method"})
	intentDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_payment_intent_duration_seconds",
		Help:    "Duration of payment intent creation calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "outcome"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Orders recorded after a successful payment.",
	}, []string{"payment_method"})
	reg.MustRegister(transitions, partialFailures, intentDuration, orders)
	return &CheckoutMetrics{
		transitions:     transitions,
		partialFailures: partialFailures,
		intentDuration:  intentDuration,
		orders:          orders,
	}
}

// IncTransition counts a single state hop.
func (c *CheckoutMetrics) IncTransition(from, to string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncPartialFailure counts a charged payment without a recorded order.
func (c *CheckoutMetrics) IncPartialFailure(method string) {
	if c == nil || c.partialFailures == nil {
		return
	}
	c.partialFailures.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncOrder counts a recorded order.
func (c *CheckoutMetrics) IncOrder(method string) {
	if c == nil || c.orders == nil {
		return
	}
	c.orders.WithLabelValues(normalizeLabel(method)).Inc()
}

// ObserveIntent records how long creating a payment intent took.
func (c *CheckoutMetrics) ObserveIntent(source string, err error, duration time.Duration) {
	if c == nil || c.intentDuration == nil {
		return
	}
	c.intentDuration.WithLabelValues(normalizeLabel(source), outcome(err)).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
