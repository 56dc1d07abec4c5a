package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Flags holds the parsed command line.
type Flags struct {
	ConfigDir string
	EnvFile   string
	Help      bool

	set *pflag.FlagSet
}

// NewFlagSet declares the command-line flags. Override flags are bound to
// config keys by Load; unset flags do not shadow the environment.
func NewFlagSet(name string) (*pflag.FlagSet, *Flags) {
	f := &Flags{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&f.ConfigDir, "config", "config", "directory containing an optional config.yaml")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.BoolVarP(&f.Help, "help", "h", false, "show help")

	fs.String("queue-url", "", "SQS queue URL (overrides SQS_QUEUE_URL)")
	fs.String("queue-type", "", "queue backend: sqs or redis")
	fs.String("base-url", "", "base URL the ticket images are fetched from (overrides SCREENSHOT_BASE_URL)")
	fs.String("printer", "", "printer driver: usb, network or none")
	fs.String("ack-policy", "", "when to delete messages: fail-open or on-success")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-output", "", "log output: stdout, console or file")
	fs.String("metrics-addr", "", "listen address for /metrics and /healthz, empty to disable")

	f.set = fs
	return fs, f
}

// Options returns the Load options for the parsed flags.
func (f *Flags) Options() Options {
	return Options{
		ConfigDir: f.ConfigDir,
		EnvFile:   f.EnvFile,
		Flags:     f.set,
	}
}

// PrintUsage writes the usage text, including the required environment.
func PrintUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s [flags]\n\n", fs.Name())
	fmt.Fprintln(w, "Consumes ticket messages from a queue, fetches each ticket image and")
	fmt.Fprintln(w, "prints it on a thermal receipt printer (or just logs it when none is attached).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Required environment (or .env file):")
	fmt.Fprintln(w, "  SQS_QUEUE_URL          queue to consume")
	fmt.Fprintln(w, "  AWS_ACCESS_KEY_ID      AWS credentials")
	fmt.Fprintln(w, "  AWS_SECRET_ACCESS_KEY")
	fmt.Fprintln(w, "  SCREENSHOT_BASE_URL    where ticket images are served from")
	fmt.Fprintln(w, "Optional:")
	fmt.Fprintln(w, "  AWS_REGION             default us-east-1")
	fmt.Fprintf(w, "  %s_<SECTION>_<KEY>  overrides any config.yaml key\n", EnvPrefix)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
