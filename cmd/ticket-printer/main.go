// ticket-printer consumes ticket messages from a queue, fetches each
// ticket's image and prints it on a thermal receipt printer. Without a
// printer it keeps running and only displays tickets in its log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sungwon/ticket-printer/internal/api"
	"github.com/sungwon/ticket-printer/internal/artifact"
	"github.com/sungwon/ticket-printer/internal/clock"
	"github.com/sungwon/ticket-printer/internal/config"
	"github.com/sungwon/ticket-printer/internal/logger"
	"github.com/sungwon/ticket-printer/internal/metrics"
	"github.com/sungwon/ticket-printer/internal/printer"
	"github.com/sungwon/ticket-printer/internal/queue"
	"github.com/sungwon/ticket-printer/internal/worker"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs, flags := config.NewFlagSet("ticket-printer")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			config.PrintUsage(os.Stdout, fs)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		config.PrintUsage(os.Stderr, fs)
		return 1
	}
	if flags.Help {
		config.PrintUsage(os.Stdout, fs)
		return 0
	}

	cfg, err := config.Load(flags.Options())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		config.PrintUsage(os.Stderr, fs)
		return 1
	}

	log := logger.NewFromConfig(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	log.Info().Msg("starting ticket printer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, err := queue.NewClient(ctx, cfg.Queue.Config, cfg.AWSOptions(), log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create queue client")
		return 1
	}
	defer q.Close()

	fetcher, err := artifact.New(cfg.Artifact, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to create artifact fetcher")
		return 1
	}

	p, err := printer.Initialize(ctx, cfg.Printer, log)
	if err != nil {
		log.Error().Err(err).Msg("invalid printer configuration")
		return 1
	}
	if p != nil {
		defer p.Close()
	}
	metrics.SetPrinterPresent(p != nil)

	consumer, err := worker.New(worker.OptionsFromConfig(cfg), worker.Deps{
		Queue:   q,
		Fetcher: fetcher,
		Printer: p,
		Clock:   clock.Real(),
		Log:     log,
	})
	if err != nil {
		log.Error().Err(err).Msg("invalid worker configuration")
		return 1
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := api.Serve(ctx, cfg.Metrics.Addr, api.NewRouter(consumer, log), log); err != nil {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if err := consumer.Run(ctx); err != nil {
		log.Error().Err(err).Msg("consumer stopped with error")
		return 1
	}

	log.Info().Msg("goodbye")
	return 0
}
