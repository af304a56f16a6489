package service

import "github.com/prometheus/client_golang/prometheus"

var (
	salesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_sales_total",
			Help: "Committed sales by payment method",
		},
		[]string{"payment_method"},
	)

	salesCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "canteen_sales_cancelled_total",
			Help: "Cancelled sales",
		},
	)

	salesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_sales_rejected_total",
			Help: "Sales rejected by a business rule, by error kind",
		},
		[]string{"kind"},
	)

	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canteen_concurrency_retries_total",
			Help: "Operations retried after a concurrency conflict",
		},
		[]string{"op"},
	)
)

// RegisterMetrics registers the ledger counters with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(salesTotal, salesCancelledTotal, salesRejectedTotal, retriesTotal)
}
