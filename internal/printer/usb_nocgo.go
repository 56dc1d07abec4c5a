//go:build !cgo

package printer

import (
	"context"
	"fmt"
)

// openUSB reports every USB printer as absent in builds without cgo, since
// libusb cannot be linked.
func openUSB(_ context.Context, cfg Config) (Device, error) {
	return nil, fmt.Errorf("%w: usb %s:%s (built without cgo)", ErrDeviceNotFound, cfg.VendorID, cfg.ProductID)
}
