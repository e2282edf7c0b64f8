// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpay_payments_initiated_total",
		Help: "Payments created, labelled by method",
	}, []string{"method"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpay_payment_transitions_total",
		Help: "Applied status transitions, labelled by target status",
	}, []string{"to_status"})

	FraudBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpay_fraud_blocked_total",
		Help: "Payments blocked by fraud screening",
	})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketpay_webhook_events_total",
		Help: "Webhook deliveries, labelled by verdict",
	}, []string{"verdict"})

	ExpiredPayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketpay_payments_expired_total",
		Help: "Pending payments reclaimed by the expiry sweep",
	})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketpay_gateway_latency_seconds",
		Help:    "Settlement gateway call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
