package queue

import "time"

// Backend types.
const (
	TypeSQS   = "sqs"
	TypeRedis = "redis"
)

// Config holds configuration for the queue capability.
type Config struct {
	// Type selects the queue backend: "sqs" (default) or "redis".
	Type string `mapstructure:"type"`

	// SQS-specific config
	SQSQueueURL   string `mapstructure:"sqs_queue_url"`
	SQSRegion     string `mapstructure:"region"`
	SQSEndpoint   string `mapstructure:"sqs_endpoint"`
	SQSVisTimeout int32  `mapstructure:"visibility_timeout"` // seconds, 0 = queue default

	// Redis-specific config
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisStream   string `mapstructure:"redis_stream"`
	RedisGroup    string `mapstructure:"redis_group"`
	RedisConsumer string `mapstructure:"redis_consumer"`
	// RedisClaimIdle is how long a delivered entry may stay unacknowledged
	// before another Receive reclaims it. It plays the role of the SQS
	// visibility timeout.
	RedisClaimIdle time.Duration `mapstructure:"redis_claim_idle"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:           TypeSQS,
		SQSRegion:      "us-east-1",
		RedisAddr:      "localhost:6379",
		RedisStream:    "tickets",
		RedisGroup:     "ticket-printer",
		RedisConsumer:  "ticket-printer-1",
		RedisClaimIdle: 30 * time.Second,
	}
}
