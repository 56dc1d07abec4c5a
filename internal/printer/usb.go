//go:build cgo

package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// usbDevice is a printer on a USB bulk OUT endpoint, claimed through
// libusb.
type usbDevice struct {
	ctx          *gousb.Context
	dev          *gousb.Device
	done         func()
	out          *gousb.OutEndpoint
	name         string
	writeTimeout time.Duration
}

// openUSB finds the device with the configured vendor/product pair, claims
// its default interface and locates the bulk OUT endpoint. A missing device
// yields ErrDeviceNotFound.
func openUSB(_ context.Context, cfg Config) (dev Device, err error) {
	vid, err := ParseID(cfg.VendorID)
	if err != nil {
		return nil, err
	}
	pid, err := ParseID(cfg.ProductID)
	if err != nil {
		return nil, err
	}

	d := &usbDevice{
		ctx:          gousb.NewContext(),
		name:         fmt.Sprintf("usb:%04x:%04x", vid, pid),
		writeTimeout: cfg.WriteTimeout,
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.dev, err = d.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if d.dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, d.name)
	}
	if err := d.dev.SetAutoDetach(true); err != nil {
		return nil, fmt.Errorf("auto detach %s: %w", d.name, err)
	}

	intf, done, err := d.dev.DefaultInterface()
	if err != nil {
		return nil, fmt.Errorf("claim interface %s: %w", d.name, err)
	}
	d.done = done

	num, ok := bulkOutEndpoint(intf.Setting)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, d.name)
	}
	if d.out, err = intf.OutEndpoint(num); err != nil {
		return nil, fmt.Errorf("out endpoint %s: %w", d.name, err)
	}
	return d, nil
}

// bulkOutEndpoint returns the lowest numbered bulk OUT endpoint of s.
// Printers that also expose a bulk IN endpoint for status are driven
// write-only.
func bulkOutEndpoint(s gousb.InterfaceSetting) (int, bool) {
	num, found := 0, false
	for _, ep := range s.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk || ep.Direction != gousb.EndpointDirectionOut {
			continue
		}
		if !found || ep.Number < num {
			num, found = ep.Number, true
		}
	}
	return num, found
}

// Write sends p on the bulk OUT endpoint.
func (d *usbDevice) Write(ctx context.Context, p []byte) error {
	if d.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.writeTimeout)
		defer cancel()
	}

	n, err := d.out.WriteContext(ctx, p)
	if err != nil {
		return fmt.Errorf("write %s: %w", d.name, err)
	}
	if n != len(p) {
		return fmt.Errorf("write %s: short write %d of %d bytes", d.name, n, len(p))
	}
	return nil
}

func (d *usbDevice) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	var errs []error
	if d.dev != nil {
		errs = append(errs, d.dev.Close())
		d.dev = nil
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Close())
		d.ctx = nil
	}
	return errors.Join(errs...)
}

func (d *usbDevice) String() string { return d.name }
