// Control-request dispatcher: the remaining user-facing operations
// of that aren't already methods on Handle (TermChar/EomVal/
// AutoAbort live in handle.go; READ_STATUS_BYTE lives in interrupt.go).
package usbtmc

import (
	"context"
	"time"

	"github.com/khainav/linux-usbtmc/internal/transport"
)

// maxGenericCtrlRequestLength bounds the user-supplied wLength for the
// generic CTRL_REQUEST pass-through, rather than trusting an arbitrary
// caller-supplied allocation size.
const maxGenericCtrlRequestLength = 4096

// GetTimeout returns the device's current operation timeout, in
// milliseconds
func (h *Handle) GetTimeout(ctx context.Context) (uint32, error) {
	d := h.device
	if err := d.lockGate(); err != nil {
		return 0, err
	}
	defer d.unlockGate()

	return d.timeoutMs, nil
}

// SetTimeout sets the device's operation timeout; values below
// MinTimeoutMs are rejected
func (h *Handle) SetTimeout(ctx context.Context, ms uint32) error {
	d := h.device
	if ms < MinTimeoutMs {
		return errBadArg("timeout must be >= %d ms", MinTimeoutMs)
	}

	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	d.timeoutMs = ms
	return nil
}

// IndicatorPulse flashes the device's identification LED
func (h *Handle) IndicatorPulse(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	status, err := d.controlStatus(ctx, bmRequestTypeClassInterface, reqIndicatorPulse, 0, 0, 1)
	if err != nil {
		return err
	}
	if status[0] != statusSuccess {
		return errPerm("INDICATOR_PULSE status 0x%02x", status[0])
	}
	return nil
}

// CtrlRequest is the generic pass-through of "Generic
// CTRL_REQUEST": the caller supplies the raw request fields and a buffer;
// for an OUT transfer the buffer is sent as-is, for an IN transfer the
// device's response is copied back into buf, truncated to len(buf) if the
// device over-reports (never trusting the device-reported length).
// A zero-length OUT request with a non-nil buffer is rejected.
func (h *Handle) CtrlRequest(ctx context.Context, bmRequestType, bRequest byte, wValue, wIndex uint16, buf []byte) (int, error) {
	d := h.device

	if len(buf) > maxGenericCtrlRequestLength {
		return 0, errBadArg("request length %d exceeds maximum %d", len(buf), maxGenericCtrlRequestLength)
	}
	if bmRequestType&0x80 == 0 && buf != nil && len(buf) == 0 {
		return 0, errBadArg("zero-length OUT request with a non-nil buffer")
	}

	if err := d.lockGate(); err != nil {
		return 0, err
	}
	defer d.unlockGate()

	dir := transport.DirOut
	if bmRequestType&0x80 != 0 {
		dir = transport.DirIn
	}

	req := &transport.ControlRequest{
		Dir:     dir,
		Type:    bmRequestType &^ 0x80,
		Request: bRequest,
		Value:   wValue,
		Index:   wIndex,
		Data:    buf,
		Timeout: defaultControlTimeout,
	}

	n, err := d.transport.Control(ctx, req)
	if err != nil {
		return 0, classifyTransportErr(err)
	}

	if dir == transport.DirIn {
		copy(buf, req.Data)
		if n > len(buf) {
			n = len(buf)
		}
	}

	return n, nil
}

// ClearInHalt clears a stall on the bulk-in endpoint directly, bypassing
// the ABORT_BULK_IN handshake
func (h *Handle) ClearInHalt(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return classifyTransportErr(d.transport.ClearHalt(ctx, d.BulkInEP))
}

// ClearOutHalt clears a stall on the bulk-out endpoint directly
func (h *Handle) ClearOutHalt(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return classifyTransportErr(d.transport.ClearHalt(ctx, d.BulkOutEP))
}

// Clear invokes the INITIATE_CLEAR state machine
// "CLEAR" operation.
func (h *Handle) Clear(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return d.clearLocked(ctx)
}

// AbortBulkIn invokes the ABORT_BULK_IN state machine directly, as a
// user-initiated operation rather than an auto_abort side effect.
func (h *Handle) AbortBulkIn(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return d.abortBulkInLocked(ctx)
}

// AbortBulkOut invokes the ABORT_BULK_OUT state machine directly
func (h *Handle) AbortBulkOut(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return d.abortBulkOutLocked(ctx)
}

// usb488Simple issues one of the USB488 "simple" requests
// (REN_CONTROL/GOTO_LOCAL/LOCAL_LOCKOUT), available only when the device
// advertises the USB488 "simple" capability
func (d *Device) usb488Simple(ctx context.Context, request byte, value uint16) error {
	if !d.caps.SupportsSimple() {
		return errNotSup("operation requires USB488 simple capability")
	}

	status, err := d.controlStatus(ctx, bmRequestTypeClassInterface, request, value, 0, 1)
	if err != nil {
		return err
	}
	if status[0] != statusSuccess {
		return errPerm("request 0x%02x status 0x%02x", request, status[0])
	}
	return nil
}

// RenControl asserts or releases REN (Remote Enable)
func (h *Handle) RenControl(ctx context.Context, enable bool) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	var v uint16
	if enable {
		v = 1
	}
	return d.usb488Simple(ctx, reqRenControl, v)
}

// GotoLocal returns the device to local (front-panel) control
func (h *Handle) GotoLocal(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return d.usb488Simple(ctx, reqGotoLocal, 0)
}

// LocalLockout disables the device's front-panel return-to-local control
func (h *Handle) LocalLockout(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	return d.usb488Simple(ctx, reqLocalLockout, 0)
}

// Trigger emits a USB488 TRIGGER bulk-out message, advancing bTag as for
// an ordinary write
func (h *Handle) Trigger(ctx context.Context) error {
	d := h.device
	if err := d.lockGate(); err != nil {
		return err
	}
	defer d.unlockGate()

	tag := d.nextBulkOutTag()
	hdr := encodeTrigger(tag)

	timeout := time.Duration(d.timeout()) * time.Millisecond

	if err := d.sendFrame(ctx, hdr[:], timeout); err != nil {
		if h.autoAbort {
			_ = d.abortBulkOutLocked(ctx)
		}
		return err
	}

	return nil
}

// USB488Caps returns the coalesced USB488 capabilities byte
func (h *Handle) USB488Caps() byte {
	return h.device.caps.USB488Caps
}
