package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records payment outcomes and outbound gateway latency.
type CheckoutMetrics struct {
	completions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_completions_total",
		Help: "Completed checkouts by payment method.",
	}, []string{"method"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout failures by stage.",
	}, []string{"stage"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of outbound gateway requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})
	reg.MustRegister(completions, failures, gatewayDuration)
	return &CheckoutMetrics{
		completions:     completions,
		failures:        failures,
		gatewayDuration: gatewayDuration,
	}
}

// IncCompletion increments the completion counter for the payment method.
func (c *CheckoutMetrics) IncCompletion(method string) {
	if c == nil || c.completions == nil {
		return
	}
	c.completions.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFailure increments the failure counter for the named stage.
func (c *CheckoutMetrics) IncFailure(stage string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(stage)).Inc()
}

// ObserveGateway records the duration of one outbound gateway call.
func (c *CheckoutMetrics) ObserveGateway(gateway, operation string, duration time.Duration) {
	if c == nil || c.gatewayDuration == nil {
		return
	}
	c.gatewayDuration.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}
