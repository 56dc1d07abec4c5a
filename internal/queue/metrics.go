package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics for Prometheus monitoring.
var (
	ReceivedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_received_total",
			Help: "Total number of messages received from the queue",
		},
		[]string{"backend"}, // sqs, redis
	)

	ReclaimedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_reclaimed_total",
			Help: "Total number of Redis stream entries reclaimed after the claim idle time",
		},
	)
)
