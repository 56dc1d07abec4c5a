package printer

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

// ESC/POS command bytes.
var (
	cmdInit       = []byte{0x1b, 0x40}       // ESC @
	cmdCutFull    = []byte{0x1d, 0x56, 0x00} // GS V 0
	cmdCutPartial = []byte{0x1d, 0x56, 0x01} // GS V 1
)

// maxBandHeight is the tallest GS v 0 block sent in one command; many
// printers overflow their buffer on taller blocks.
const maxBandHeight = 256

// PrintError describes a failure while printing on a present device.
type PrintError struct {
	// Op is the stage that failed: "decode", "write", "feed" or "cut".
	Op     string
	Device string
	Err    error
}

func (e *PrintError) Error() string {
	if e.Device == "" {
		return "print " + e.Op + ": " + e.Err.Error()
	}
	return "print " + e.Op + " on " + e.Device + ": " + e.Err.Error()
}

func (e *PrintError) Unwrap() error { return e.Err }

// IsPrintError reports whether err is, or wraps, a *PrintError.
func IsPrintError(err error) bool {
	var pe *PrintError
	return errors.As(err, &pe)
}

// ESCPOS prints raster images on an ESC/POS device. Jobs are serialized:
// a physical printer cannot interleave them.
type ESCPOS struct {
	mu        sync.Mutex
	dev       Device
	width     int
	feedLines int
	cut       []byte
}

// NewESCPOS creates an ESCPOS printer writing to dev.
func NewESCPOS(dev Device, cfg Config) *ESCPOS {
	width := cfg.PaperWidthDots
	if width <= 0 {
		width = DefaultConfig().PaperWidthDots
	}
	cut := cmdCutPartial
	if cfg.Cut == CutFull {
		cut = cmdCutFull
	}
	return &ESCPOS{
		dev:       dev,
		width:     width,
		feedLines: cfg.FeedLines,
		cut:       cut,
	}
}

// Print rasterizes image, sends it, feeds and cuts. It makes exactly one
// attempt.
func (p *ESCPOS) Print(ctx context.Context, image []byte) error {
	raster, err := Rasterize(image, p.width)
	if err != nil {
		return &PrintError{Op: "decode", Device: p.dev.String(), Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.write(ctx, "write", EncodeRaster(raster)); err != nil {
		return err
	}
	if err := p.write(ctx, "feed", EncodeFeed(p.feedLines)); err != nil {
		return err
	}
	return p.write(ctx, "cut", p.cut)
}

// Feed advances the paper by n lines.
func (p *ESCPOS) Feed(ctx context.Context, n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(ctx, "feed", EncodeFeed(n))
}

// Cut cuts the paper.
func (p *ESCPOS) Cut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write(ctx, "cut", p.cut)
}

// Close releases the device.
func (p *ESCPOS) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev.Close()
}

func (p *ESCPOS) write(ctx context.Context, op string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &PrintError{Op: op, Device: p.dev.String(), Err: err}
	}
	if err := p.dev.Write(ctx, data); err != nil {
		return &PrintError{Op: op, Device: p.dev.String(), Err: err}
	}
	return nil
}

// EncodeRaster renders r as ESC @ followed by GS v 0 raster blocks of at
// most maxBandHeight rows.
func EncodeRaster(r *Raster) []byte {
	var buf bytes.Buffer
	buf.Write(cmdInit)

	for y := 0; y < r.Height; y += maxBandHeight {
		rows := r.Height - y
		if rows > maxBandHeight {
			rows = maxBandHeight
		}
		// GS v 0 m xL xH yL yH
		buf.Write([]byte{
			0x1d, 0x76, 0x30, 0x00,
			byte(r.WidthBytes), byte(r.WidthBytes >> 8),
			byte(rows), byte(rows >> 8),
		})
		buf.Write(r.Data[y*r.WidthBytes : (y+rows)*r.WidthBytes])
	}
	return buf.Bytes()
}

// EncodeFeed returns ESC d n, split into chunks of 255 lines.
func EncodeFeed(n int) []byte {
	var out []byte
	for n > 0 {
		step := n
		if step > 255 {
			step = 255
		}
		out = append(out, 0x1b, 0x64, byte(step))
		n -= step
	}
	return out
}
