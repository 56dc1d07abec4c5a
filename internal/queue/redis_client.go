package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Field names of a ticket entry in the Redis stream. Producers XADD
// {"id": ..., "body": ...}; "id" is optional and defaults to the entry ID.
const (
	redisFieldID   = "id"
	redisFieldBody = "body"
)

// redisBlockSlice bounds a single blocking XREADGROUP call.
const redisBlockSlice = time.Second

// RedisClient is a queue Client backed by a Redis Stream and consumer
// group. The receipt handle of a delivery is its stream entry ID; Delete
// acknowledges and removes the entry. Entries left unacknowledged for
// longer than the claim idle time are reclaimed by a later Receive, which
// gives the same at-least-once redelivery as an SQS visibility timeout.
type RedisClient struct {
	client    *redis.Client
	stream    string
	group     string
	consumer  string
	claimIdle time.Duration
	now       func() time.Time
}

// NewRedisClient creates a RedisClient. The consumer group is created on
// first use by EnsureGroup.
func NewRedisClient(client *redis.Client, cfg Config) *RedisClient {
	return &RedisClient{
		client:    client,
		stream:    cfg.RedisStream,
		group:     cfg.RedisGroup,
		consumer:  cfg.RedisConsumer,
		claimIdle: cfg.RedisClaimIdle,
		now:       time.Now,
	}
}

// NewRedisClientFromConfig connects to Redis, verifies connectivity and
// ensures the consumer group exists.
func NewRedisClientFromConfig(ctx context.Context, cfg Config) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}

	c := NewRedisClient(client, cfg)
	if err := c.EnsureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// EnsureGroup creates the consumer group for the stream. If the stream or
// group already exists, the error is ignored.
func (c *RedisClient) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on stream %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Receive first reclaims entries whose previous delivery went unacknowledged
// for longer than the claim idle time, then reads new entries, blocking for
// up to waitSeconds.
func (c *RedisClient) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]Message, error) {
	if err := ValidateReceive(maxMessages, waitSeconds); err != nil {
		return nil, err
	}

	var entries []redis.XMessage

	if c.claimIdle > 0 {
		claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimIdle,
			Start:    "0-0",
			Count:    int64(maxMessages),
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, newTransportError("receive", err)
		}
		ReclaimedMessagesTotal.Add(float64(len(claimed)))
		entries = append(entries, claimed...)
	}

	if len(entries) == 0 {
		streams, err := c.readGroup(ctx, int64(maxMessages), time.Duration(waitSeconds)*time.Second)
		if err != nil {
			return nil, newTransportError("receive", err)
		}
		for _, s := range streams {
			entries = append(entries, s.Messages...)
		}
	}

	receivedAt := c.now()
	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, entryToMessage(e, receivedAt))
	}

	ReceivedMessagesTotal.WithLabelValues(TypeRedis).Add(float64(len(messages)))
	return messages, nil
}

// readGroup reads new entries, blocking for up to wait in slices of at most
// redisBlockSlice. A blocked XREADGROUP is not interrupted by ctx, so ctx is
// checked between slices.
func (c *RedisClient) readGroup(ctx context.Context, count int64, wait time.Duration) ([]redis.XStream, error) {
	remaining := wait
	for {
		// Block < 0 omits BLOCK entirely; BLOCK 0 would wait forever.
		block := time.Duration(-1)
		if remaining > 0 {
			block = min(remaining, redisBlockSlice)
			remaining -= block
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    count,
			Block:    block,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, err
		}
		if len(streams) > 0 || remaining <= 0 {
			return streams, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Delete acknowledges the entry in the consumer group and removes it from
// the stream.
func (c *RedisClient) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, c.stream, c.group, receiptHandle)
		pipe.XDel(ctx, c.stream, receiptHandle)
		return nil
	})
	if err != nil {
		return newTransportError("delete", err)
	}
	return nil
}

// Close closes the underlying Redis connection pool.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// entryToMessage converts a stream entry to a Message. Non-string field
// values are rendered with fmt so a malformed producer still yields a
// printable body.
func entryToMessage(e redis.XMessage, receivedAt time.Time) Message {
	msg := Message{
		ID:            e.ID,
		ReceiptHandle: e.ID,
		ReceivedAt:    receivedAt,
	}
	if v, ok := e.Values[redisFieldID]; ok {
		if s := fmt.Sprint(v); s != "" {
			msg.ID = s
		}
	}
	if v, ok := e.Values[redisFieldBody]; ok {
		msg.Body = fmt.Sprint(v)
	}
	return msg
}
