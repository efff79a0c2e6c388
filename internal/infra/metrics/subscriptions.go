package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		activationsTotal,
		reconciledTotal,
		alertsTotal,
	)
}

var (
	activationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_activations_total",
			Help: "Subscription activation attempts by path (paid/free/reconcile) and result.",
		},
		[]string{"path", "result"},
	)

	reconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Ledger entries processed by the reconciler, by result.",
		},
		[]string{"result"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_alerts_total",
			Help: "Operations alerts by delivery status (sent/error/dropped).",
		},
		[]string{"status"},
	)
)

func IncActivation(path, result string) {
	activationsTotal.WithLabelValues(norm(path), norm(result)).Inc()
}

func IncReconciled(result string) {
	reconciledTotal.WithLabelValues(norm(result)).Inc()
}

func IncAlert(status string) {
	alertsTotal.WithLabelValues(norm(status)).Inc()
}
