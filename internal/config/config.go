// Package config loads worker settings from an optional config.yaml, a .env
// file, environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sungwon/ticket-printer/internal/artifact"
	"github.com/sungwon/ticket-printer/internal/awsconf"
	"github.com/sungwon/ticket-printer/internal/printer"
	"github.com/sungwon/ticket-printer/internal/queue"
)

// EnvPrefix prefixes every environment override, e.g.
// TICKET_PRINTER_QUEUE_MAX_MESSAGES overrides queue.max_messages.
const EnvPrefix = "TICKET_PRINTER"

// Ack policies.
const (
	// AckFailOpen deletes every processed message, even when fetching or
	// printing failed.
	AckFailOpen = "fail-open"
	// AckOnSuccess deletes a message only when it was fetched and printed
	// (or displayed, without a printer).
	AckOnSuccess = "on-success"
)

// Config holds all application configuration.
type Config struct {
	Queue    QueueConfig     `mapstructure:"queue"`
	AWS      AWSConfig       `mapstructure:"aws"`
	Artifact artifact.Config `mapstructure:"artifact"`
	Printer  printer.Config  `mapstructure:"printer"`
	Worker   WorkerConfig    `mapstructure:"worker"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
}

// QueueConfig holds the queue backend settings plus receive parameters.
type QueueConfig struct {
	queue.Config `mapstructure:",squash"`

	MaxMessages     int           `mapstructure:"max_messages"`
	WaitTimeSeconds int           `mapstructure:"wait_time_seconds"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

// AWSConfig holds credentials shared by the SQS and S3 clients.
type AWSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	// RequireStaticCredentials refuses to start without an access key pair
	// instead of falling back to the SDK credential chain.
	RequireStaticCredentials bool `mapstructure:"require_static_credentials"`
}

// WorkerConfig holds consumer loop settings.
type WorkerConfig struct {
	AckPolicy      string        `mapstructure:"ack_policy"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"` // stdout, console, file
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// MetricsConfig holds the optional metrics/health HTTP listener.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the server.
	Addr string `mapstructure:"addr"`
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigDir is searched for config.yaml. The file is optional.
	ConfigDir string
	// EnvFile is a dotenv file loaded into the process environment before
	// reading variables. A missing file is ignored.
	EnvFile string
	// Flags, when set, are bound to their config keys (see NewFlagSet).
	Flags *pflag.FlagSet
}

// aliases are the plain variable names honoured in addition to the
// prefixed ones.
var aliases = map[string]string{
	"queue.sqs_queue_url":   "SQS_QUEUE_URL",
	"queue.region":          "AWS_REGION",
	"aws.access_key_id":     "AWS_ACCESS_KEY_ID",
	"aws.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"aws.session_token":     "AWS_SESSION_TOKEN",
	"artifact.base_url":     "SCREENSHOT_BASE_URL",
}

// flagKeys maps override flags to config keys.
var flagKeys = map[string]string{
	"queue-url":    "queue.sqs_queue_url",
	"queue-type":   "queue.type",
	"base-url":     "artifact.base_url",
	"printer":      "printer.driver",
	"ack-policy":   "worker.ack_policy",
	"log-level":    "logging.level",
	"log-output":   "logging.output",
	"metrics-addr": "metrics.addr",
}

// Load reads configuration. Precedence, highest first: flags, environment
// (TICKET_PRINTER_* then the plain aliases), config.yaml, defaults.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if opts.ConfigDir != "" {
		v.AddConfigPath(opts.ConfigDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", alias, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if opts.ConfigDir != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Artifact.AccessKeyID = cfg.AWS.AccessKeyID
	cfg.Artifact.SecretAccessKey = cfg.AWS.SecretAccessKey
	if cfg.Artifact.S3Region == "" {
		cfg.Artifact.S3Region = cfg.Queue.SQSRegion
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	q := queue.DefaultConfig()
	v.SetDefault("queue.type", q.Type)
	v.SetDefault("queue.sqs_queue_url", "")
	v.SetDefault("queue.region", q.SQSRegion)
	v.SetDefault("queue.sqs_endpoint", "")
	v.SetDefault("queue.visibility_timeout", 30)
	v.SetDefault("queue.max_messages", queue.MinMaxMessages)
	v.SetDefault("queue.wait_time_seconds", queue.MaxWaitSeconds)
	v.SetDefault("queue.retry_delay", 5*time.Second)
	v.SetDefault("queue.redis_addr", q.RedisAddr)
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.redis_stream", q.RedisStream)
	v.SetDefault("queue.redis_group", q.RedisGroup)
	v.SetDefault("queue.redis_consumer", q.RedisConsumer)
	v.SetDefault("queue.redis_claim_idle", q.RedisClaimIdle)

	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("aws.require_static_credentials", true)

	a := artifact.DefaultConfig()
	v.SetDefault("artifact.type", a.Type)
	v.SetDefault("artifact.base_url", "")
	v.SetDefault("artifact.timeout", a.Timeout)
	v.SetDefault("artifact.s3_bucket", "")
	v.SetDefault("artifact.s3_prefix", "")
	v.SetDefault("artifact.s3_endpoint", "")
	v.SetDefault("artifact.s3_region", "")
	v.SetDefault("artifact.local_path", "")

	p := printer.DefaultConfig()
	v.SetDefault("printer.driver", p.Driver)
	v.SetDefault("printer.vendor_id", p.VendorID)
	v.SetDefault("printer.product_id", p.ProductID)
	v.SetDefault("printer.address", "")
	v.SetDefault("printer.dial_timeout", p.DialTimeout)
	v.SetDefault("printer.write_timeout", p.WriteTimeout)
	v.SetDefault("printer.paper_width_dots", p.PaperWidthDots)
	v.SetDefault("printer.feed_lines", p.FeedLines)
	v.SetDefault("printer.cut", p.Cut)

	v.SetDefault("worker.ack_policy", AckFailOpen)
	v.SetDefault("worker.process_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "ticket-printer.log")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_files", 5)

	v.SetDefault("metrics.addr", "")
}

// Validate reports the first setting that prevents the worker from
// starting, as an *Error.
func (c *Config) Validate() error {
	switch c.Queue.Type {
	case queue.TypeSQS, "":
		if c.Queue.SQSQueueURL == "" {
			return Missing("queue.sqs_queue_url", "set SQS_QUEUE_URL")
		}
		if c.AWS.RequireStaticCredentials {
			if c.AWS.AccessKeyID == "" {
				return Missing("aws.access_key_id", "set AWS_ACCESS_KEY_ID")
			}
			if c.AWS.SecretAccessKey == "" {
				return Missing("aws.secret_access_key", "set AWS_SECRET_ACCESS_KEY")
			}
		}
	case queue.TypeRedis:
		if c.Queue.RedisAddr == "" {
			return Missing("queue.redis_addr", "")
		}
		if c.Queue.RedisStream == "" || c.Queue.RedisGroup == "" {
			return Missing("queue.redis_stream", "stream and group are both required")
		}
	default:
		return Invalid("queue.type", fmt.Sprintf("unknown queue type %q", c.Queue.Type))
	}

	if c.Queue.MaxMessages < queue.MinMaxMessages || c.Queue.MaxMessages > queue.MaxMaxMessages {
		return Invalid("queue.max_messages", fmt.Sprintf("%d is outside %d..%d",
			c.Queue.MaxMessages, queue.MinMaxMessages, queue.MaxMaxMessages))
	}
	if c.Queue.WaitTimeSeconds < 0 || c.Queue.WaitTimeSeconds > queue.MaxWaitSeconds {
		return Invalid("queue.wait_time_seconds", fmt.Sprintf("%d is outside 0..%d",
			c.Queue.WaitTimeSeconds, queue.MaxWaitSeconds))
	}
	if c.Queue.RetryDelay < 0 {
		return Invalid("queue.retry_delay", "must not be negative")
	}

	switch c.Artifact.Type {
	case artifact.TypeHTTP, "":
		if c.Artifact.BaseURL == "" {
			return Missing("artifact.base_url", "set SCREENSHOT_BASE_URL")
		}
		if !strings.HasPrefix(c.Artifact.BaseURL, "http://") && !strings.HasPrefix(c.Artifact.BaseURL, "https://") {
			return Invalid("artifact.base_url", "must be an http or https URL")
		}
	case artifact.TypeS3:
		if c.Artifact.S3Bucket == "" {
			return Missing("artifact.s3_bucket", "")
		}
	case artifact.TypeLocal:
		if c.Artifact.LocalPath == "" {
			return Missing("artifact.local_path", "")
		}
	default:
		return Invalid("artifact.type", fmt.Sprintf("unknown artifact type %q", c.Artifact.Type))
	}

	if err := c.Printer.Validate(); err != nil {
		return &Error{Field: "printer", Reason: err.Error(), Err: err}
	}

	switch c.Worker.AckPolicy {
	case AckFailOpen, AckOnSuccess:
	default:
		return Invalid("worker.ack_policy", fmt.Sprintf("unknown policy %q, want %s or %s",
			c.Worker.AckPolicy, AckFailOpen, AckOnSuccess))
	}

	return nil
}

// AWSOptions returns the credentials and region for the AWS clients.
func (c *Config) AWSOptions() awsconf.Options {
	return awsconf.Options{
		Region:          c.Queue.SQSRegion,
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		SessionToken:    c.AWS.SessionToken,
	}
}
