package usbtmc

import (
	"context"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// ProbeCapabilities issues GET_CAPABILITIES and caches the result on d.
// Run once at probe time; a failure here is logged by the
// caller but does not fail device registration (the caller decides that,
// since this package doesn't own the log-and-continue policy).
func ProbeCapabilities(ctx context.Context, d *Device) error {
	buf := make([]byte, 24)

	req := &transport.ControlRequest{
		Dir:     transport.DirIn,
		Type:    bmRequestTypeClassInterface,
		Request: reqGetCapabilities,
		Data:    buf,
		Timeout: defaultControlTimeout,
	}

	n, err := d.transport.Control(ctx, req)
	if err != nil {
		return err
	}

	if n < 24 {
		return errs.New(errs.PERM, "GET_CAPABILITIES returned %d bytes, want 24", n)
	}

	if req.Data[0] != statusSuccess {
		return errs.New(errs.PERM, "GET_CAPABILITIES status 0x%02x", req.Data[0])
	}

	caps := Capabilities{
		InterfaceCaps:       req.Data[4],
		DeviceCaps:          req.Data[5],
		USB488InterfaceCaps: req.Data[14],
		USB488DeviceCaps:    req.Data[15],
	}
	caps.USB488Caps = (caps.USB488InterfaceCaps & 0x07) | ((caps.USB488DeviceCaps & 0x0F) << 4)

	d.caps = caps
	return nil
}
