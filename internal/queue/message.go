// Package queue provides the queue capability consumed by the ticket
// worker: long-poll receive and delete-by-receipt-handle, backed by AWS SQS
// or Redis Streams.
package queue

import "time"

// Message is a single delivery of a queue message.
//
// ReceiptHandle identifies this delivery, not the message. It is valid only
// until the message is deleted or its visibility timeout expires, and must
// never be persisted or reused for a later delivery.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceivedAt    time.Time
	// Attributes holds backend system attributes (e.g. SQS
	// ApproximateReceiveCount). May be nil.
	Attributes map[string]string
}

// ReceiveCount returns the backend's approximate delivery count for the
// message, or the empty string when the backend does not report one.
func (m Message) ReceiveCount() string {
	return m.Attributes[attrReceiveCount]
}

const attrReceiveCount = "ApproximateReceiveCount"
