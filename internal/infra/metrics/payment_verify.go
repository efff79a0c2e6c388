package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		PaymentVerifyRequests,
		PaymentVerifyDuration,
		gatewayLatency,
	)
}

var (
	// Count of verify calls grouped by result and bounded reason.
	// result: ok|fail
	// reason: ok|validation|signature_mismatch|duplicate|ledger_failed|profile_update_failed|timeout|general
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of /api/v1/payments/verify calls by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of verify handler grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of /api/v1/payments/verify handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Latency of outbound payment gateway calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "success"},
	)
)

func ObserveVerify(result, reason string, d time.Duration) {
	PaymentVerifyRequests.WithLabelValues(norm(result), norm(reason)).Inc()
	PaymentVerifyDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func ObserveGatewayLatency(op string, d time.Duration, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	gatewayLatency.WithLabelValues(norm(op), s).Observe(d.Seconds())
}
