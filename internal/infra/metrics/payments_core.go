package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ordersTotal,
		ledgerWritesTotal,
		paymentsRevenueTotal,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_orders_total",
			Help: "Gateway order creation attempts by result (created/invalid/gateway_error/timeout).",
		},
		[]string{"result"},
	)

	ledgerWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_ledger_writes_total",
			Help: "Ledger inserts and annotations by status and outcome.",
		},
		[]string{"status", "outcome"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of verified payments in major units, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncOrder(result string) {
	ordersTotal.WithLabelValues(norm(result)).Inc()
}

func IncLedgerWrite(status string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	ledgerWritesTotal.WithLabelValues(norm(status), outcome).Inc()
}

// revenueCurrencies bounds the currency label; anything else is counted as "other".
var revenueCurrencies = map[string]struct{}{
	"inr": {}, "usd": {}, "eur": {}, "gbp": {}, "aud": {}, "cad": {}, "sgd": {}, "aed": {},
}

func currencyLabel(currency string) string {
	c := norm(currency)
	if _, ok := revenueCurrencies[c]; ok {
		return c
	}
	return "other"
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(currencyLabel(currency)).Add(amount)
}
