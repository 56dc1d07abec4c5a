package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sungwon/ticket-printer/internal/artifact"
	"github.com/sungwon/ticket-printer/internal/printer"
	"github.com/sungwon/ticket-printer/internal/queue"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SQS_QUEUE_URL", "AWS_REGION", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"AWS_SESSION_TOKEN", "SCREENSHOT_BASE_URL",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func validEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("SQS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123456789012/tickets")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("SCREENSHOT_BASE_URL", "https://tickets.example.com/screens")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Queue.Type != queue.TypeSQS {
		t.Errorf("expected queue type sqs, got %s", cfg.Queue.Type)
	}
	if cfg.Queue.MaxMessages != 1 {
		t.Errorf("expected max messages 1, got %d", cfg.Queue.MaxMessages)
	}
	if cfg.Queue.WaitTimeSeconds != 20 {
		t.Errorf("expected wait 20s, got %d", cfg.Queue.WaitTimeSeconds)
	}
	if cfg.Queue.RetryDelay != 5*time.Second {
		t.Errorf("expected retry delay 5s, got %v", cfg.Queue.RetryDelay)
	}
	if cfg.Queue.SQSVisTimeout != 30 {
		t.Errorf("expected visibility timeout 30, got %d", cfg.Queue.SQSVisTimeout)
	}
	if cfg.Queue.SQSRegion != "us-east-1" {
		t.Errorf("expected region us-east-1, got %s", cfg.Queue.SQSRegion)
	}
	if cfg.Artifact.Type != artifact.TypeHTTP || cfg.Artifact.Timeout != 15*time.Second {
		t.Errorf("unexpected artifact defaults: %+v", cfg.Artifact)
	}
	if cfg.Printer.Driver != printer.DriverUSB || cfg.Printer.PaperWidthDots != 384 || cfg.Printer.FeedLines != 4 {
		t.Errorf("unexpected printer defaults: %+v", cfg.Printer)
	}
	if cfg.Worker.AckPolicy != AckFailOpen {
		t.Errorf("expected ack policy fail-open, got %s", cfg.Worker.AckPolicy)
	}
	if cfg.Worker.ProcessTimeout != 30*time.Second {
		t.Errorf("expected process timeout 30s, got %v", cfg.Worker.ProcessTimeout)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Output != "stdout" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Metrics.Addr != "" {
		t.Errorf("expected metrics disabled, got %q", cfg.Metrics.Addr)
	}
	if !cfg.AWS.RequireStaticCredentials {
		t.Error("expected static credentials to be required by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_Aliases(t *testing.T) {
	validEnv(t)
	t.Setenv("AWS_REGION", "eu-west-2")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Queue.SQSQueueURL != "https://sqs.us-east-1.amazonaws.com/123456789012/tickets" {
		t.Errorf("unexpected queue URL %s", cfg.Queue.SQSQueueURL)
	}
	if cfg.Queue.SQSRegion != "eu-west-2" {
		t.Errorf("expected region from AWS_REGION, got %s", cfg.Queue.SQSRegion)
	}
	if cfg.Artifact.BaseURL != "https://tickets.example.com/screens" {
		t.Errorf("unexpected base URL %s", cfg.Artifact.BaseURL)
	}
	if cfg.Artifact.AccessKeyID != "AKIDEXAMPLE" || cfg.Artifact.S3Region != "eu-west-2" {
		t.Errorf("expected AWS settings shared with artifact config, got %+v", cfg.Artifact)
	}

	opts := cfg.AWSOptions()
	if opts.Region != "eu-west-2" || opts.AccessKeyID != "AKIDEXAMPLE" || opts.SecretAccessKey != "secret" {
		t.Errorf("unexpected AWS options %+v", opts)
	}
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	validEnv(t)
	t.Setenv("TICKET_PRINTER_QUEUE_SQS_QUEUE_URL", "https://sqs.example/prefixed")
	t.Setenv("TICKET_PRINTER_QUEUE_MAX_MESSAGES", "10")
	t.Setenv("TICKET_PRINTER_WORKER_PROCESS_TIMEOUT", "45s")

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Queue.SQSQueueURL != "https://sqs.example/prefixed" {
		t.Errorf("expected prefixed variable to win, got %s", cfg.Queue.SQSQueueURL)
	}
	if cfg.Queue.MaxMessages != 10 {
		t.Errorf("expected max messages 10, got %d", cfg.Queue.MaxMessages)
	}
	if cfg.Worker.ProcessTimeout != 45*time.Second {
		t.Errorf("expected process timeout 45s, got %v", cfg.Worker.ProcessTimeout)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	validEnv(t)
	dir := t.TempDir()
	yaml := `
queue:
  max_messages: 5
  wait_time_seconds: 10
printer:
  driver: network
  address: 10.0.0.9:9100
  cut: full
worker:
  ack_policy: on-success
logging:
  output: console
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(Options{ConfigDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Queue.MaxMessages != 5 || cfg.Queue.WaitTimeSeconds != 10 {
		t.Errorf("unexpected queue settings: %+v", cfg.Queue)
	}
	if cfg.Printer.Driver != printer.DriverNetwork || cfg.Printer.Address != "10.0.0.9:9100" || cfg.Printer.Cut != printer.CutFull {
		t.Errorf("unexpected printer settings: %+v", cfg.Printer)
	}
	if cfg.Printer.FeedLines != 4 {
		t.Errorf("expected unset keys to keep defaults, got feed lines %d", cfg.Printer.FeedLines)
	}
	if cfg.Worker.AckPolicy != AckOnSuccess {
		t.Errorf("expected on-success, got %s", cfg.Worker.AckPolicy)
	}
	if cfg.Logging.Output != "console" {
		t.Errorf("expected console output, got %s", cfg.Logging.Output)
	}
}

func TestLoad_MissingConfigFileIsFine(t *testing.T) {
	validEnv(t)
	if _, err := Load(Options{ConfigDir: t.TempDir()}); err != nil {
		t.Fatalf("expected missing config.yaml to be ignored, got %v", err)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	validEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("queue: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(Options{ConfigDir: dir}); err == nil {
		t.Fatal("expected error for malformed config.yaml")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	env := "SQS_QUEUE_URL=https://sqs.example/from-dotenv\nAWS_ACCESS_KEY_ID=AKID\nAWS_SECRET_ACCESS_KEY=s\nSCREENSHOT_BASE_URL=http://localhost:8000\n"
	if err := os.WriteFile(path, []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv sets variables directly; make sure they are removed afterwards.
	t.Cleanup(func() {
		for _, k := range []string{"SQS_QUEUE_URL", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "SCREENSHOT_BASE_URL"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(Options{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.SQSQueueURL != "https://sqs.example/from-dotenv" {
		t.Errorf("expected queue URL from .env, got %q", cfg.Queue.SQSQueueURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	validEnv(t)
	if _, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "nope.env")}); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLoad_Flags(t *testing.T) {
	validEnv(t)
	fs, flags := NewFlagSet("ticket-printer")
	if err := fs.Parse([]string{"--printer", "none", "--log-level", "debug", "--config", t.TempDir()}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := Load(flags.Options())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Printer.Driver != printer.DriverNone {
		t.Errorf("expected flag to set printer driver, got %s", cfg.Printer.Driver)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected flag to set log level, got %s", cfg.Logging.Level)
	}
	if cfg.Queue.SQSQueueURL == "" {
		t.Error("expected unset --queue-url not to shadow SQS_QUEUE_URL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		wantMiss bool
	}{
		{"missing queue url", func(c *Config) { c.Queue.SQSQueueURL = "" }, "queue.sqs_queue_url", true},
		{"missing access key", func(c *Config) { c.AWS.AccessKeyID = "" }, "aws.access_key_id", true},
		{"missing secret", func(c *Config) { c.AWS.SecretAccessKey = "" }, "aws.secret_access_key", true},
		{"missing base url", func(c *Config) { c.Artifact.BaseURL = "" }, "artifact.base_url", true},
		{"bad base url", func(c *Config) { c.Artifact.BaseURL = "ftp://x" }, "artifact.base_url", false},
		{"max messages zero", func(c *Config) { c.Queue.MaxMessages = 0 }, "queue.max_messages", false},
		{"max messages eleven", func(c *Config) { c.Queue.MaxMessages = 11 }, "queue.max_messages", false},
		{"wait negative", func(c *Config) { c.Queue.WaitTimeSeconds = -1 }, "queue.wait_time_seconds", false},
		{"wait too long", func(c *Config) { c.Queue.WaitTimeSeconds = 21 }, "queue.wait_time_seconds", false},
		{"unknown ack policy", func(c *Config) { c.Worker.AckPolicy = "never" }, "worker.ack_policy", false},
		{"unknown queue type", func(c *Config) { c.Queue.Type = "kafka" }, "queue.type", false},
		{"redis without addr", func(c *Config) { c.Queue.Type = queue.TypeRedis; c.Queue.RedisAddr = "" }, "queue.redis_addr", true},
		{"s3 without bucket", func(c *Config) { c.Artifact.Type = artifact.TypeS3 }, "artifact.s3_bucket", true},
		{"local without path", func(c *Config) { c.Artifact.Type = artifact.TypeLocal }, "artifact.local_path", true},
		{"bad printer", func(c *Config) { c.Printer.Driver = "serial" }, "printer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			cfg, err := Load(Options{})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.mutate(cfg)

			err = cfg.Validate()
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if errors.Is(err, ErrMissing) != tt.wantMiss {
				t.Errorf("errors.Is(ErrMissing) = %v, want %v", !tt.wantMiss, tt.wantMiss)
			}
		})
	}
}

func TestValidate_OptionalStaticCredentials(t *testing.T) {
	validEnv(t)
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.AWS = AWSConfig{RequireStaticCredentials: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected SDK credential chain to be allowed, got %v", err)
	}
}

func TestValidate_RedisSkipsAWS(t *testing.T) {
	validEnv(t)
	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Queue.Type = queue.TypeRedis
	cfg.Queue.SQSQueueURL = ""
	cfg.AWS = AWSConfig{RequireStaticCredentials: true}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected redis config without AWS credentials to be valid, got %v", err)
	}
}

func TestError(t *testing.T) {
	err := Missing("queue.sqs_queue_url", "set SQS_QUEUE_URL")
	if got, want := err.Error(), "config queue.sqs_queue_url: required setting missing (set SQS_QUEUE_URL)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsConfigError(err) {
		t.Error("IsConfigError = false")
	}
	if IsConfigError(errors.New("other")) {
		t.Error("IsConfigError(other) = true")
	}
}
