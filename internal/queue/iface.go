package queue

import (
	"context"
	"errors"
	"fmt"
)

// Receive bounds imposed by SQS and mirrored by every backend.
const (
	MinMaxMessages = 1
	MaxMaxMessages = 10
	MaxWaitSeconds = 20
)

// ErrInvalidReceive is returned when Receive is called with a batch size or
// wait time outside the supported bounds.
var ErrInvalidReceive = errors.New("queue: invalid receive parameters")

// Client is the queue capability: long-poll for a batch of messages and
// delete a delivery by its receipt handle. Errors from Receive and Delete
// that originate in the transport are *TransportError.
type Client interface {
	Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	Close() error
}

// ValidateReceive checks maxMessages and waitSeconds against the receive
// bounds.
func ValidateReceive(maxMessages, waitSeconds int) error {
	if maxMessages < MinMaxMessages || maxMessages > MaxMaxMessages {
		return fmt.Errorf("%w: max messages %d not in [%d, %d]",
			ErrInvalidReceive, maxMessages, MinMaxMessages, MaxMaxMessages)
	}
	if waitSeconds < 0 || waitSeconds > MaxWaitSeconds {
		return fmt.Errorf("%w: wait seconds %d not in [0, %d]",
			ErrInvalidReceive, waitSeconds, MaxWaitSeconds)
	}
	return nil
}
