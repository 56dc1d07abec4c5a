package printer

import (
	"context"
	"fmt"
	"net"
	"time"
)

const defaultDialTimeout = 3 * time.Second

// netDevice is a printer reached over a raw TCP socket (JetDirect, port
// 9100).
type netDevice struct {
	conn         net.Conn
	addr         string
	writeTimeout time.Duration
}

func openNetwork(ctx context.Context, cfg Config) (Device, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrDeviceNotFound, cfg.Address, err)
	}
	return &netDevice{conn: conn, addr: cfg.Address, writeTimeout: cfg.WriteTimeout}, nil
}

// Write sends p, bounded by the context deadline or the write timeout,
// whichever is sooner.
func (d *netDevice) Write(ctx context.Context, p []byte) error {
	var deadline time.Time
	if d.writeTimeout > 0 {
		deadline = time.Now().Add(d.writeTimeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	_ = d.conn.SetWriteDeadline(deadline)

	if _, err := d.conn.Write(p); err != nil {
		return fmt.Errorf("write %s: %w", d.addr, err)
	}
	return nil
}

func (d *netDevice) Close() error { return d.conn.Close() }

func (d *netDevice) String() string { return "tcp://" + d.addr }
