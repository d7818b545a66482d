// Package metrics holds Prometheus instruments that are used across the
// store.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentReadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_document_reads_total",
			Help: "Cumulative number of document read statements executed.",
		})

	DocumentWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_document_writes_total",
			Help: "Cumulative number of document save statements executed.",
		})

	DocumentDeletesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_document_deletes_total",
			Help: "Cumulative number of document delete statements executed.",
		})

	BatchMutationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_batch_mutations_total",
			Help: "Cumulative number of batch update/delete statements executed.",
		})

	StoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docstore_store_errors_total",
			Help: "Cumulative number of statements that returned a store error.",
		})

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_transactions_total",
			Help: "Transactions by outcome.",
		},
		[]string{"outcome"}, // commit | rollback
	)
)

func init() {
	prometheus.MustRegister(
		DocumentReadsTotal,
		DocumentWritesTotal,
		DocumentDeletesTotal,
		BatchMutationsTotal,
		StoreErrorsTotal,
		TransactionsTotal,
	)
}
