// Package metrics holds the worker's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of processing one message.
const (
	OutcomePrinted     = "printed"
	OutcomeLogged      = "logged" // no printer attached
	OutcomeFetchFailed = "fetch_failed"
	OutcomePrintFailed = "print_failed"
)

// Delete results.
const (
	DeleteOK      = "ok"
	DeleteFailed  = "failed"
	DeleteSkipped = "skipped" // left for redelivery by the ack policy
)

// Worker metrics
var (
	MessagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_printer_messages_processed_total",
			Help: "Total number of ticket messages processed by outcome",
		},
		[]string{"outcome"},
	)

	DeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_printer_deletes_total",
			Help: "Total number of message acknowledgments by result",
		},
		[]string{"result"},
	)

	ReceiveErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_printer_receive_errors_total",
			Help: "Total number of failed receive calls by error code",
		},
		[]string{"code"},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_printer_processing_duration_seconds",
			Help:    "Duration of processing one message, fetch and print included",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Printer metrics
var (
	PrinterPresent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticket_printer_printer_present",
			Help: "1 when a receipt printer is attached, 0 in display-only mode",
		},
	)
)

// SetPrinterPresent records whether a printer was found at startup.
func SetPrinterPresent(present bool) {
	if present {
		PrinterPresent.Set(1)
		return
	}
	PrinterPresent.Set(0)
}
