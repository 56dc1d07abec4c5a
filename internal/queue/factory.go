package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sungwon/ticket-printer/internal/awsconf"
)

// NewClient creates the queue Client selected by cfg.Type. creds is used
// only by the SQS backend.
func NewClient(ctx context.Context, cfg Config, creds awsconf.Options, log zerolog.Logger) (Client, error) {
	switch cfg.Type {
	case TypeSQS, "":
		c, err := NewSQSClientFromConfig(ctx, cfg, creds)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("backend", TypeSQS).
			Str("queue_url", cfg.SQSQueueURL).
			Msg("queue client ready")
		return c, nil

	case TypeRedis:
		c, err := NewRedisClientFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("backend", TypeRedis).
			Str("stream", cfg.RedisStream).
			Str("group", cfg.RedisGroup).
			Msg("queue client ready")
		return c, nil

	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}
