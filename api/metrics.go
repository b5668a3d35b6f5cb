/*
metrics.go - Prometheus instrumentation for the settlement machinery

Exposed on /metrics via promhttp. Counters only; the settlement sweep is
the one background process worth watching, and sweeps/settled/failures
answer the questions that matter (is it running, is it doing work, is it
erroring).
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlementSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vero_settlement_sweeps_total",
		Help: "Number of settlement sweeps executed.",
	})

	settledTransactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vero_settled_transactions_total",
		Help: "Number of scheduled transactions promoted to completed.",
	})

	settlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vero_settlement_failures_total",
		Help: "Number of settlement sweeps that failed to read the due set.",
	})
)
