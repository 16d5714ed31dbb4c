// Package metrics exposes Prometheus counters for the inventory API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EquipmentCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipment_created_total",
		Help: "Equipment records created.",
	})
	EquipmentTransferredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equipment_transferred_total",
		Help: "Equipment transfer operations completed.",
	})
	PurchasesConvertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purchases_converted_total",
		Help: "Purchase requests converted into equipment.",
	})
	HistoryRetryEnqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_retry_enqueued_total",
		Help: "History entries that failed to persist and were queued for retry.",
	})
)

// Register attaches all counters to the given registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(
		EquipmentCreatedTotal,
		EquipmentTransferredTotal,
		PurchasesConvertedTotal,
		HistoryRetryEnqueuedTotal,
	)
}
