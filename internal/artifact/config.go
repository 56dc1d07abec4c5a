package artifact

import "time"

// Config holds configuration for creating a Fetcher.
type Config struct {
	Type    string        `mapstructure:"type"` // "http" (default), "s3" or "local"
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Endpoint string `mapstructure:"s3_endpoint"`
	S3Region   string `mapstructure:"s3_region"`

	LocalPath string `mapstructure:"local_path"`

	// AWS credentials shared with the queue client; not read from the
	// artifact section itself.
	AccessKeyID     string `mapstructure:"-"`
	SecretAccessKey string `mapstructure:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:    TypeHTTP,
		Timeout: 15 * time.Second,
	}
}
