package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/sungwon/ticket-printer/internal/awsconf"
)

// sqsAPI abstracts the AWS SQS client for testability.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error)
	DeleteMessage(ctx context.Context, input *sqsDeleteInput) error
}

// sqsReceiveInput mirrors the fields needed for SQS ReceiveMessage.
type sqsReceiveInput struct {
	QueueURL            string
	MaxNumberOfMessages int32
	WaitTimeSeconds     int32
	VisibilityTimeout   int32
}

// sqsReceiveOutput contains the messages returned by ReceiveMessage.
type sqsReceiveOutput struct {
	Messages []sqsReceivedMessage
}

// sqsReceivedMessage represents a single message received from SQS.
type sqsReceivedMessage struct {
	MessageID     string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
}

// sqsDeleteInput mirrors the fields needed for SQS DeleteMessage.
type sqsDeleteInput struct {
	QueueURL      string
	ReceiptHandle string
}

// awsSQSClient wraps the real AWS SQS SDK client and implements sqsAPI.
type awsSQSClient struct {
	client *sqs.Client
}

// newAWSSQSClient creates an awsSQSClient from a resolved aws.Config. A
// non-empty endpoint overrides the service endpoint (e.g. LocalStack).
func newAWSSQSClient(cfg aws.Config, endpoint string) *awsSQSClient {
	return &awsSQSClient{client: sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})}
}

// ReceiveMessage long-polls the specified SQS queue for messages.
func (c *awsSQSClient) ReceiveMessage(ctx context.Context, input *sqsReceiveInput) (*sqsReceiveOutput, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    &input.QueueURL,
		MaxNumberOfMessages:         input.MaxNumberOfMessages,
		WaitTimeSeconds:             input.WaitTimeSeconds,
		VisibilityTimeout:           input.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, err
	}

	messages := make([]sqsReceivedMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, sqsReceivedMessage{
			MessageID:     aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Attributes:    m.Attributes,
		})
	}
	return &sqsReceiveOutput{Messages: messages}, nil
}

// DeleteMessage deletes a message from the specified SQS queue.
func (c *awsSQSClient) DeleteMessage(ctx context.Context, input *sqsDeleteInput) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &input.QueueURL,
		ReceiptHandle: &input.ReceiptHandle,
	})
	return err
}

// SQSClient is the SQS-backed queue Client.
type SQSClient struct {
	api        sqsAPI
	queueURL   string
	visTimeout int32
	now        func() time.Time
}

// NewSQSClient creates an SQSClient over an SQS API implementation.
func NewSQSClient(api sqsAPI, queueURL string, visTimeout int32) *SQSClient {
	return &SQSClient{
		api:        api,
		queueURL:   queueURL,
		visTimeout: visTimeout,
		now:        time.Now,
	}
}

// NewSQSClientFromConfig creates an SQSClient backed by the AWS SDK.
func NewSQSClientFromConfig(ctx context.Context, cfg Config, creds awsconf.Options) (*SQSClient, error) {
	if creds.Region == "" {
		creds.Region = cfg.SQSRegion
	}
	awsCfg, err := awsconf.Load(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("create sqs client: %w", err)
	}
	return NewSQSClient(newAWSSQSClient(awsCfg, cfg.SQSEndpoint), cfg.SQSQueueURL, cfg.SQSVisTimeout), nil
}

// Receive long-polls the queue for up to maxMessages messages, waiting at
// most waitSeconds for the first one to arrive. An empty result is not an
// error.
func (c *SQSClient) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error) {
	if err := ValidateReceive(maxMessages, waitSeconds); err != nil {
		return nil, err
	}

	out, err := c.api.ReceiveMessage(ctx, &sqsReceiveInput{
		QueueURL:            c.queueURL,
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
		VisibilityTimeout:   c.visTimeout,
	})
	if err != nil {
		return nil, newTransportError("receive", err)
	}

	receivedAt := c.now()
	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:            m.MessageID,
			Body:          m.Body,
			ReceiptHandle: m.ReceiptHandle,
			ReceivedAt:    receivedAt,
			Attributes:    m.Attributes,
		})
	}

	ReceivedMessagesTotal.WithLabelValues(TypeSQS).Add(float64(len(messages)))
	return messages, nil
}

// Delete removes the delivery identified by receiptHandle from the queue.
func (c *SQSClient) Delete(ctx context.Context, receiptHandle string) error {
	if err := c.api.DeleteMessage(ctx, &sqsDeleteInput{
		QueueURL:      c.queueURL,
		ReceiptHandle: receiptHandle,
	}); err != nil {
		return newTransportError("delete", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no long-lived connections that
// need releasing.
func (c *SQSClient) Close() error { return nil }
