package queue

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/redis/go-redis/v9"
)

// Transport error codes used when the backend does not supply its own.
const (
	CodeUnknown    = "Unknown"
	CodeConnection = "ConnectionError"
	CodeCanceled   = "Canceled"
)

// TransportError describes a failed receive or delete call: connectivity,
// authentication, throttling, or a service-side fault.
type TransportError struct {
	// Op is the queue operation that failed ("receive" or "delete").
	Op string
	// Code is the service error code (e.g. "AWS.SimpleQueueService.NonExistentQueue",
	// "ThrottlingException") or one of the Code* constants.
	Code string
	// Message is the human-readable service message.
	Message string
	// Fault is "client", "server" or "unknown".
	Fault string
	Err   error
}

func (e *TransportError) Error() string {
	return "queue " + e.Op + ": " + e.Code + ": " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Err }

// Throttled reports whether the service rejected the call for rate reasons.
func (e *TransportError) Throttled() bool {
	switch e.Code {
	case "ThrottlingException", "Throttling", "RequestThrottled",
		"OverLimit", "KmsThrottled", "TooManyRequestsException":
		return true
	}
	return false
}

// IsTransportError reports whether err is, or wraps, a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// newTransportError classifies err for op. AWS API errors carry their own
// code and fault; Redis server errors use the leading error word as code;
// anything else is treated as a connection failure.
func newTransportError(op string, err error) *TransportError {
	te := &TransportError{
		Op:      op,
		Code:    CodeConnection,
		Message: err.Error(),
		Fault:   "unknown",
		Err:     err,
	}

	var apiErr smithy.APIError
	var redisErr redis.Error
	switch {
	case errors.As(err, &apiErr):
		te.Code = apiErr.ErrorCode()
		te.Message = apiErr.ErrorMessage()
		te.Fault = apiErr.ErrorFault().String()
	case errors.As(err, &redisErr):
		msg := redisErr.Error()
		code, rest, ok := strings.Cut(msg, " ")
		if !ok {
			code, rest = CodeUnknown, msg
		}
		te.Code = code
		te.Message = rest
		te.Fault = "server"
	case errors.Is(err, context.Canceled):
		te.Code = CodeCanceled
	}

	if te.Code == "" {
		te.Code = CodeUnknown
	}
	return te
}
