package usbtmc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// checkBackoff returns a bounded exponential backoff used between
// CHECK_ABORT_*/CHECK_CLEAR_STATUS polls, so a device that answers
// PENDING repeatedly doesn't get hammered at full speed.
func checkBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0 // bounded by MaxReadsToClear iterations, not wall time
	return b
}

// drainBulkIn reads up to MaxReadsToClear chunks from bulk-in, discarding
// their contents, stopping as soon as a short (less than max-packet-size)
// packet arrives. If every read returns a full-size packet, the device is
// considered stuck and drainBulkIn fails.
func (d *Device) drainBulkIn(ctx context.Context, maxPacketSize int) error {
	if maxPacketSize <= 0 {
		return errs.New(errs.IO, "bulk-in max-packet-size unknown, cannot drain")
	}

	buf := make([]byte, maxPacketSize)
	timeout := time.Duration(d.timeout()) * time.Millisecond

	for i := 0; i < MaxReadsToClear; i++ {
		n, err := d.transport.BulkIn(ctx, buf, timeout)
		if err != nil {
			return classifyTransportErr(err)
		}
		if n < maxPacketSize {
			return nil
		}
	}

	return errs.New(errs.IO, "device did not stop sending after %d drain reads", MaxReadsToClear)
}

// abortBulkInLocked implements the ABORT_BULK_IN state machine.
// Called with the IO gate already held.
func (d *Device) abortBulkInLocked(ctx context.Context) error {
	status, err := d.controlStatus(ctx, bmRequestTypeClassEndpoint, reqInitiateAbortBulkIn,
		uint16(d.bTagLastRead), uint16(d.BulkInEP), 2)
	if err != nil {
		return err
	}

	if status[0] == statusFailed {
		return nil // nothing to abort
	}
	if status[0] != statusSuccess {
		return errPerm("INITIATE_ABORT_BULK_IN status 0x%02x", status[0])
	}

	if err := d.drainBulkIn(ctx, d.iinMaxPacketSize); err != nil {
		return err
	}

	b := checkBackoff()

	for i := 0; i < MaxReadsToClear; i++ {
		resp, err := d.controlStatus(ctx, bmRequestTypeClassEndpoint, reqCheckAbortBulkInStatus,
			0, uint16(d.BulkInEP), 8)
		if err != nil {
			return err
		}

		switch {
		case resp[0] == statusSuccess:
			return nil
		case resp[0] == statusPending && resp[2]&0x01 != 0:
			if err := d.drainBulkIn(ctx, d.iinMaxPacketSize); err != nil {
				return err
			}
		case resp[0] == statusPending:
			time.Sleep(b.NextBackOff())
		default:
			return errPerm("CHECK_ABORT_BULK_IN_STATUS status 0x%02x", resp[0])
		}
	}

	return errs.New(errs.IO, "ABORT_BULK_IN did not converge after %d checks", MaxReadsToClear)
}

// abortBulkOutLocked implements the ABORT_BULK_OUT state machine.
// Called with the IO gate already held.
func (d *Device) abortBulkOutLocked(ctx context.Context) error {
	status, err := d.controlStatus(ctx, bmRequestTypeClassEndpoint, reqInitiateAbortBulkOut,
		uint16(d.bTagLastWrite), uint16(d.BulkOutEP), 2)
	if err != nil {
		return err
	}

	if status[0] != statusSuccess {
		return errPerm("INITIATE_ABORT_BULK_OUT status 0x%02x", status[0])
	}

	b := checkBackoff()

	for i := 0; i < MaxReadsToClear; i++ {
		resp, err := d.controlStatus(ctx, bmRequestTypeClassEndpoint, reqCheckAbortBulkOutStatus,
			0, uint16(d.BulkOutEP), 8)
		if err != nil {
			return err
		}

		switch resp[0] {
		case statusSuccess:
			return d.transport.ClearHalt(ctx, d.BulkOutEP)
		case statusPending:
			time.Sleep(b.NextBackOff())
		default:
			return errPerm("CHECK_ABORT_BULK_OUT_STATUS status 0x%02x", resp[0])
		}
	}

	return errs.New(errs.IO, "ABORT_BULK_OUT did not converge after %d checks", MaxReadsToClear)
}

// clearLocked implements the INITIATE_CLEAR state machine.
// Called with the IO gate already held.
func (d *Device) clearLocked(ctx context.Context) error {
	status, err := d.controlStatus(ctx, bmRequestTypeClassInterface, reqInitiateClear, 0, 0, 1)
	if err != nil {
		return err
	}
	if status[0] != statusSuccess {
		return errPerm("INITIATE_CLEAR status 0x%02x", status[0])
	}

	b := checkBackoff()

	for i := 0; i < MaxReadsToClear; i++ {
		resp, err := d.controlStatus(ctx, bmRequestTypeClassInterface, reqCheckClearStatus, 0, 0, 2)
		if err != nil {
			return err
		}

		switch {
		case resp[0] == statusSuccess:
			return d.transport.ClearHalt(ctx, d.BulkOutEP)
		case resp[0] == statusPending && resp[1]&0x01 != 0:
			if err := d.drainBulkIn(ctx, d.iinMaxPacketSize); err != nil {
				return err
			}
		case resp[0] == statusPending:
			time.Sleep(b.NextBackOff())
		default:
			return errPerm("CHECK_CLEAR_STATUS status 0x%02x", resp[0])
		}
	}

	return errs.New(errs.IO, "CLEAR did not converge after %d checks", MaxReadsToClear)
}

// controlStatus issues a class control request expecting a fixed-size
// status reply and returns the raw reply bytes.
func (d *Device) controlStatus(ctx context.Context, reqType uint8, request uint8,
	value, index uint16, replyLen int) ([]byte, error) {

	buf := make([]byte, replyLen)
	req := &transport.ControlRequest{
		Dir:     transport.DirIn,
		Type:    reqType,
		Request: request,
		Value:   value,
		Index:   index,
		Data:    buf,
		Timeout: defaultControlTimeout,
	}

	n, err := d.transport.Control(ctx, req)
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if n < replyLen {
		return nil, errs.New(errs.PERM, "control request 0x%02x returned %d bytes, want %d", request, n, replyLen)
	}

	return req.Data, nil
}
