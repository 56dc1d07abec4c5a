// Package printer drives an ESC/POS thermal receipt printer. A printer is
// discovered once at startup; when none is attached Initialize reports it
// as absent and callers fall back to display-only mode.
package printer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrDeviceNotFound is returned by device openers when no matching
	// printer is attached or reachable.
	ErrDeviceNotFound = errors.New("printer: device not found")
	// ErrNoEndpoint is returned when a USB device exposes no bulk OUT
	// endpoint on its default interface.
	ErrNoEndpoint = errors.New("printer: no bulk out endpoint")
)

// Printer prints a receipt image and cuts the paper. Print is not
// idempotent and must not be retried by callers on failure.
type Printer interface {
	Print(ctx context.Context, image []byte) error
	Close() error
}

// Device is a raw byte sink for printer commands.
type Device interface {
	Write(ctx context.Context, p []byte) error
	Close() error
	// String describes the device for logs.
	String() string
}

// Drivers.
const (
	DriverUSB     = "usb"
	DriverNetwork = "network"
	DriverNone    = "none"
)

// Cut modes.
const (
	CutFull    = "full"
	CutPartial = "partial"
)

// Config holds printer discovery and output settings.
type Config struct {
	// Driver selects how the printer is reached: "usb" (default),
	// "network" or "none".
	Driver string `mapstructure:"driver"`
	// VendorID and ProductID identify a USB printer, e.g. "0x0416" and
	// "0x5011". Decimal is accepted too.
	VendorID  string `mapstructure:"vendor_id"`
	ProductID string `mapstructure:"product_id"`
	// Address is host:port of a network printer (raw socket, usually 9100).
	Address        string        `mapstructure:"address"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PaperWidthDots int           `mapstructure:"paper_width_dots"`
	FeedLines      int           `mapstructure:"feed_lines"`
	Cut            string        `mapstructure:"cut"`
}

// DefaultConfig returns a Config for a common 58mm USB receipt printer.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverUSB,
		VendorID:       "0x0416",
		ProductID:      "0x5011",
		DialTimeout:    3 * time.Second,
		WriteTimeout:   10 * time.Second,
		PaperWidthDots: 384,
		FeedLines:      4,
		Cut:            CutPartial,
	}
}

// Validate reports configuration mistakes that would make discovery
// meaningless.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverUSB, "":
		if _, err := ParseID(c.VendorID); err != nil {
			return fmt.Errorf("vendor_id: %w", err)
		}
		if _, err := ParseID(c.ProductID); err != nil {
			return fmt.Errorf("product_id: %w", err)
		}
	case DriverNetwork:
		if c.Address == "" {
			return errors.New("address is required for the network driver")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}

	switch c.Cut {
	case CutFull, CutPartial, "":
	default:
		return fmt.Errorf("unknown cut mode %q", c.Cut)
	}
	if c.PaperWidthDots < 0 || c.PaperWidthDots%8 != 0 {
		return fmt.Errorf("paper_width_dots %d must be a multiple of 8", c.PaperWidthDots)
	}
	return nil
}

// ParseID parses a 16-bit USB vendor or product id written as hex ("0x04b8")
// or decimal.
func ParseID(s string) (uint16, error) {
	if s == "" {
		return 0, errors.New("empty id")
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return uint16(v), nil
}

// opener opens the Device for a driver.
type opener func(ctx context.Context, cfg Config) (Device, error)

var openers = map[string]opener{
	DriverUSB:     openUSB,
	DriverNetwork: openNetwork,
}

// Initialize probes for the configured printer once. It returns (nil, nil)
// when the printer is absent: that is the normal display-only mode, not an
// error. An error is returned only for invalid configuration.
func Initialize(ctx context.Context, cfg Config, log zerolog.Logger) (Printer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("printer config: %w", err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverUSB
	}
	if driver == DriverNone {
		log.Info().Msg("printer disabled, tickets will only be displayed")
		return nil, nil
	}

	dev, err := openers[driver](ctx, cfg)
	if err != nil {
		evt := log.Warn()
		if !errors.Is(err, ErrDeviceNotFound) {
			evt = log.Error()
		}
		evt.Err(err).
			Str("driver", driver).
			Msg("no printer available, tickets will only be displayed")
		return nil, nil
	}

	log.Info().
		Str("driver", driver).
		Str("device", dev.String()).
		Int("paper_width_dots", cfg.PaperWidthDots).
		Msg("printer ready")

	return NewESCPOS(dev, cfg), nil
}
