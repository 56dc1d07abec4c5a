package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

// mockSQSClient implements sqsAPI for testing.
type mockSQSClient struct {
	mu         sync.Mutex
	messages   []sqsReceivedMessage
	received   []sqsReceiveInput
	deleted    []sqsDeleteInput
	receiveErr error
	deleteErr  error
}

func (m *mockSQSClient) ReceiveMessage(_ context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, *input)
	if m.receiveErr != nil {
		return nil, m.receiveErr
	}
	msgs := make([]sqsReceivedMessage, len(m.messages))
	copy(msgs, m.messages)
	return &sqsReceiveOutput{Messages: msgs}, nil
}

func (m *mockSQSClient) DeleteMessage(_ context.Context, input *sqsDeleteInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, *input)
	return nil
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123/tickets"

func TestSQSClient_Receive(t *testing.T) {
	t.Parallel()

	mock := &mockSQSClient{messages: []sqsReceivedMessage{
		{MessageID: "m-1", ReceiptHandle: "rh-1", Body: "tickets/abc123.png",
			Attributes: map[string]string{"ApproximateReceiveCount": "2"}},
		{MessageID: "m-2", ReceiptHandle: "rh-2", Body: `{"todo":"water plants"}`},
	}}
	client := NewSQSClient(mock, testQueueURL, 45)
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	msgs, err := client.Receive(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m-1" || msgs[0].ReceiptHandle != "rh-1" || msgs[0].Body != "tickets/abc123.png" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[0].ReceiveCount() != "2" {
		t.Errorf("ReceiveCount = %q, want 2", msgs[0].ReceiveCount())
	}
	if msgs[1].ReceiveCount() != "" {
		t.Errorf("ReceiveCount without attributes = %q, want empty", msgs[1].ReceiveCount())
	}
	if !msgs[1].ReceivedAt.Equal(fixed) {
		t.Errorf("ReceivedAt = %v, want %v", msgs[1].ReceivedAt, fixed)
	}

	if len(mock.received) != 1 {
		t.Fatalf("expected 1 receive call, got %d", len(mock.received))
	}
	in := mock.received[0]
	if in.QueueURL != testQueueURL {
		t.Errorf("queue URL = %q", in.QueueURL)
	}
	if in.MaxNumberOfMessages != 10 || in.WaitTimeSeconds != 20 || in.VisibilityTimeout != 45 {
		t.Errorf("unexpected receive input: %+v", in)
	}
}

func TestSQSClient_ReceiveEmpty(t *testing.T) {
	t.Parallel()

	client := NewSQSClient(&mockSQSClient{}, testQueueURL, 0)
	msgs, err := client.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestSQSClient_ReceiveBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		maxMessages int
		wait        int
	}{
		{"zero batch", 0, 20},
		{"batch too large", 11, 20},
		{"negative wait", 1, -1},
		{"wait too long", 1, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSQSClient{}
			client := NewSQSClient(mock, testQueueURL, 0)
			_, err := client.Receive(context.Background(), tt.maxMessages, tt.wait)
			if !errors.Is(err, ErrInvalidReceive) {
				t.Errorf("expected ErrInvalidReceive, got %v", err)
			}
			if len(mock.received) != 0 {
				t.Errorf("expected no API call, got %d", len(mock.received))
			}
		})
	}
}

func TestSQSClient_ReceiveErrorIsTransportError(t *testing.T) {
	t.Parallel()

	mock := &mockSQSClient{receiveErr: &smithy.GenericAPIError{
		Code:    "ThrottlingException",
		Message: "Rate exceeded",
		Fault:   smithy.FaultClient,
	}}
	client := NewSQSClient(mock, testQueueURL, 0)

	_, err := client.Receive(context.Background(), 1, 20)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.Op != "receive" {
		t.Errorf("Op = %q, want receive", te.Op)
	}
	if te.Code != "ThrottlingException" || te.Message != "Rate exceeded" || te.Fault != "client" {
		t.Errorf("unexpected classification: %+v", te)
	}
	if !te.Throttled() {
		t.Error("expected Throttled() = true")
	}
}

func TestSQSClient_Delete(t *testing.T) {
	t.Parallel()

	mock := &mockSQSClient{}
	client := NewSQSClient(mock, testQueueURL, 0)

	if err := client.Delete(context.Background(), "rh-42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(mock.deleted) != 1 {
		t.Fatalf("expected 1 delete, got %d", len(mock.deleted))
	}
	if mock.deleted[0].ReceiptHandle != "rh-42" || mock.deleted[0].QueueURL != testQueueURL {
		t.Errorf("unexpected delete input: %+v", mock.deleted[0])
	}
}

func TestSQSClient_DeleteError(t *testing.T) {
	t.Parallel()

	mock := &mockSQSClient{deleteErr: &smithy.GenericAPIError{
		Code:    "ReceiptHandleIsInvalid",
		Message: "The receipt handle has expired",
		Fault:   smithy.FaultClient,
	}}
	client := NewSQSClient(mock, testQueueURL, 0)

	err := client.Delete(context.Background(), "stale")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if te.Op != "delete" || te.Code != "ReceiptHandleIsInvalid" {
		t.Errorf("unexpected classification: %+v", te)
	}
	if te.Throttled() {
		t.Error("expected Throttled() = false")
	}
}
