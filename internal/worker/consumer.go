// Package worker runs the ticket consumer loop: receive a batch, log each
// ticket, fetch its image, print it and acknowledge the message.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/ticket-printer/internal/artifact"
	"github.com/sungwon/ticket-printer/internal/clock"
	"github.com/sungwon/ticket-printer/internal/config"
	"github.com/sungwon/ticket-printer/internal/format"
	"github.com/sungwon/ticket-printer/internal/logger"
	"github.com/sungwon/ticket-printer/internal/metrics"
	"github.com/sungwon/ticket-printer/internal/printer"
	"github.com/sungwon/ticket-printer/internal/queue"
)

// deleteTimeout bounds an acknowledgment. Deletes run detached from the
// loop's context so a ticket printed just before shutdown is still removed.
const deleteTimeout = 10 * time.Second

// Options holds consumer loop settings.
type Options struct {
	// MaxMessages is the batch size per receive, 1..10.
	MaxMessages int
	// WaitSeconds is the long-poll wait per receive, 0..20.
	WaitSeconds int
	// RetryDelay is the fixed pause after a failed receive.
	RetryDelay time.Duration
	// AckPolicy is config.AckFailOpen or config.AckOnSuccess.
	AckPolicy string
	// ProcessTimeout bounds fetching and printing one message.
	ProcessTimeout time.Duration
}

// DefaultOptions returns the options the original listener used: one
// message per receive, 20s long poll, 5s retry delay, fail-open.
func DefaultOptions() Options {
	return Options{
		MaxMessages:    1,
		WaitSeconds:    queue.MaxWaitSeconds,
		RetryDelay:     5 * time.Second,
		AckPolicy:      config.AckFailOpen,
		ProcessTimeout: 30 * time.Second,
	}
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxMessages:    cfg.Queue.MaxMessages,
		WaitSeconds:    cfg.Queue.WaitTimeSeconds,
		RetryDelay:     cfg.Queue.RetryDelay,
		AckPolicy:      cfg.Worker.AckPolicy,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	}
}

// Deps are the capabilities the consumer drives.
type Deps struct {
	Queue   queue.Client
	Fetcher artifact.Fetcher
	// Printer is nil when no printer is attached; tickets are then only
	// displayed through the log.
	Printer printer.Printer
	// Clock defaults to the real clock.
	Clock clock.Clock
	Log   zerolog.Logger
}

// Stats is a snapshot of the consumer's counters.
type Stats struct {
	Received       uint64 `json:"received"`
	Printed        uint64 `json:"printed"`
	Displayed      uint64 `json:"displayed"`
	FetchFailures  uint64 `json:"fetch_failures"`
	PrintFailures  uint64 `json:"print_failures"`
	Deleted        uint64 `json:"deleted"`
	DeleteFailures uint64 `json:"delete_failures"`
	Skipped        uint64 `json:"skipped"`
	ReceiveErrors  uint64 `json:"receive_errors"`
}

type counters struct {
	received       atomic.Uint64
	printed        atomic.Uint64
	displayed      atomic.Uint64
	fetchFailures  atomic.Uint64
	printFailures  atomic.Uint64
	deleted        atomic.Uint64
	deleteFailures atomic.Uint64
	skipped        atomic.Uint64
	receiveErrors  atomic.Uint64
}

// Consumer is the single-goroutine poll, process, acknowledge loop.
type Consumer struct {
	opts    Options
	queue   queue.Client
	fetcher artifact.Fetcher
	printer printer.Printer
	clock   clock.Clock
	log     zerolog.Logger
	stats   counters
}

// New validates opts and deps and returns a Consumer. Errors are
// *config.Error.
func New(opts Options, deps Deps) (*Consumer, error) {
	if deps.Queue == nil {
		return nil, config.Missing("worker.queue", "queue client is required")
	}
	if deps.Fetcher == nil {
		return nil, config.Missing("worker.fetcher", "artifact fetcher is required")
	}
	if opts.MaxMessages < queue.MinMaxMessages || opts.MaxMessages > queue.MaxMaxMessages {
		return nil, config.Invalid("queue.max_messages",
			fmt.Sprintf("%d is outside %d..%d", opts.MaxMessages, queue.MinMaxMessages, queue.MaxMaxMessages))
	}
	if opts.WaitSeconds < 0 || opts.WaitSeconds > queue.MaxWaitSeconds {
		return nil, config.Invalid("queue.wait_time_seconds",
			fmt.Sprintf("%d is outside 0..%d", opts.WaitSeconds, queue.MaxWaitSeconds))
	}
	if opts.RetryDelay < 0 {
		return nil, config.Invalid("queue.retry_delay", "must not be negative")
	}

	switch opts.AckPolicy {
	case "":
		opts.AckPolicy = config.AckFailOpen
	case config.AckFailOpen, config.AckOnSuccess:
	default:
		return nil, config.Invalid("worker.ack_policy", fmt.Sprintf("unknown policy %q", opts.AckPolicy))
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultOptions().ProcessTimeout
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Consumer{
		opts:    opts,
		queue:   deps.Queue,
		fetcher: deps.Fetcher,
		printer: deps.Printer,
		clock:   clk,
		log:     deps.Log,
	}, nil
}

// PrinterPresent reports whether tickets are printed or only displayed.
func (c *Consumer) PrinterPresent() bool { return c.printer != nil }

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received:       c.stats.received.Load(),
		Printed:        c.stats.printed.Load(),
		Displayed:      c.stats.displayed.Load(),
		FetchFailures:  c.stats.fetchFailures.Load(),
		PrintFailures:  c.stats.printFailures.Load(),
		Deleted:        c.stats.deleted.Load(),
		DeleteFailures: c.stats.deleteFailures.Load(),
		Skipped:        c.stats.skipped.Load(),
		ReceiveErrors:  c.stats.receiveErrors.Load(),
	}
}

// Run polls until ctx is canceled and then returns nil. Per-message
// failures are logged and never end the loop. A failed receive or delete is
// followed by RetryDelay before the next poll, retried forever.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().
		Int("max_messages", c.opts.MaxMessages).
		Int("wait_seconds", c.opts.WaitSeconds).
		Str("ack_policy", c.opts.AckPolicy).
		Bool("printer", c.PrinterPresent()).
		Msg("listening for ticket messages")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("shutting down")
			return nil
		default:
		}

		msgs, err := c.queue.Receive(ctx, c.opts.MaxMessages, c.opts.WaitSeconds)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Msg("shutting down")
				return nil
			}
			c.receiveFailed(err)
			if !c.pause(ctx) {
				c.log.Info().Msg("shutting down")
				return nil
			}
			continue
		}

		if len(msgs) == 0 {
			c.log.Info().Msg("no new messages, continuing to poll")
			continue
		}

		for i, msg := range msgs {
			if ctx.Err() != nil {
				c.log.Info().
					Int("left", len(msgs)-i).
					Msg("interrupted, remaining messages left for redelivery")
				break
			}
			if err := c.process(ctx, msg); err != nil {
				// Transport failure on delete: back off and poll again.
				if left := len(msgs) - i - 1; left > 0 {
					c.log.Info().Int("left", left).Msg("remaining messages left for redelivery")
				}
				if !c.pause(ctx) {
					c.log.Info().Msg("shutting down")
					return nil
				}
				break
			}
		}
	}
}

// pause waits RetryDelay. It reports false if ctx is canceled first.
func (c *Consumer) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(c.opts.RetryDelay):
		return true
	}
}

func (c *Consumer) receiveFailed(err error) {
	c.stats.receiveErrors.Add(1)

	code := queue.CodeUnknown
	evt := c.log.Error().Err(err)
	var te *queue.TransportError
	if errors.As(err, &te) {
		code = te.Code
		evt = evt.
			Str("code", te.Code).
			Str("fault", te.Fault).
			Str("error_message", te.Message).
			Bool("throttled", te.Throttled())
	}
	metrics.ReceiveErrorsTotal.WithLabelValues(code).Inc()

	evt.Dur("retry_in", c.opts.RetryDelay).Msg("receive failed")
}

// process handles one message: display, fetch, print, acknowledge. It
// returns only the error of a failed delete.
func (c *Consumer) process(ctx context.Context, msg queue.Message) error {
	start := c.clock.Now()
	c.stats.received.Add(1)

	id := logger.NewCorrelationID()
	log := c.log.With().
		Str("correlation_id", id).
		Str("message_id", msg.ID).
		Logger()
	ctx = logger.WithCorrelationID(logger.WithLogger(ctx, log), id)

	body := format.Parse(msg.Body)
	evt := log.Info().
		Str("kind", body.Kind.String()).
		Str("ticket", format.Format(msg))
	if s := format.Summary(body); s != "" {
		evt = evt.Str("summary", s)
	}
	if n := msg.ReceiveCount(); n != "" && n != "1" {
		evt = evt.Str("receive_count", n)
	}
	evt.Msg("new ticket message")

	outcome, err := c.render(ctx, format.Key(body))
	if outcome == "" {
		// Interrupted before the ticket was handled.
		log.Info().Err(err).Msg("interrupted, message left for redelivery")
		return nil
	}
	metrics.MessagesProcessedTotal.WithLabelValues(outcome).Inc()
	metrics.ProcessingDuration.Observe(c.clock.Now().Sub(start).Seconds())

	if err != nil && c.opts.AckPolicy == config.AckOnSuccess {
		c.stats.skipped.Add(1)
		metrics.DeletesTotal.WithLabelValues(metrics.DeleteSkipped).Inc()
		log.Warn().Str("outcome", outcome).Msg("message left for redelivery")
		return nil
	}

	return c.ack(ctx, msg)
}

// render fetches the ticket image and prints it. It returns the outcome
// label, or "" when ctx was canceled before the ticket was handled.
func (c *Consumer) render(ctx context.Context, key string) (string, error) {
	log := logger.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	pctx, cancel := context.WithTimeout(ctx, c.opts.ProcessTimeout)
	defer cancel()

	data, err := c.fetcher.Fetch(pctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		c.stats.fetchFailures.Add(1)
		evt := log.Error().Err(err).Str("key", key)
		var fe *artifact.FetchError
		if errors.As(err, &fe) {
			evt = evt.Int("status", fe.StatusCode).Bool("permanent", fe.Permanent)
		}
		evt.Msg("failed to fetch ticket image")
		return metrics.OutcomeFetchFailed, err
	}
	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("ticket image fetched")

	if c.printer == nil {
		c.stats.displayed.Add(1)
		log.Info().Msg("no printer attached, ticket displayed only")
		return metrics.OutcomeLogged, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := c.printer.Print(pctx, data); err != nil {
		c.stats.printFailures.Add(1)
		evt := log.Warn().Err(err).Str("key", key)
		var pe *printer.PrintError
		if errors.As(err, &pe) {
			evt = evt.Str("op", pe.Op).Str("device", pe.Device)
		}
		evt.Msg("failed to print ticket")
		return metrics.OutcomePrintFailed, err
	}

	c.stats.printed.Add(1)
	log.Info().Str("key", key).Msg("ticket printed")
	return metrics.OutcomePrinted, nil
}

// ack deletes msg. After a failed delete the message reappears once its
// visibility timeout expires.
func (c *Consumer) ack(ctx context.Context, msg queue.Message) error {
	log := logger.FromContext(ctx)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()

	if err := c.queue.Delete(dctx, msg.ReceiptHandle); err != nil {
		c.stats.deleteFailures.Add(1)
		metrics.DeletesTotal.WithLabelValues(metrics.DeleteFailed).Inc()

		evt := log.Error().Err(err)
		var te *queue.TransportError
		if errors.As(err, &te) {
			evt = evt.Str("code", te.Code).Str("error_message", te.Message)
		}
		evt.Dur("retry_in", c.opts.RetryDelay).Msg("failed to delete message")
		return err
	}

	c.stats.deleted.Add(1)
	metrics.DeletesTotal.WithLabelValues(metrics.DeleteOK).Inc()
	log.Debug().Msg("message deleted")
	return nil
}
