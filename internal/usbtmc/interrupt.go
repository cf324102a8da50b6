package usbtmc

import (
	"context"
	"time"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// interruptPollLoop continuously reads the interrupt-in endpoint and
// demultiplexes each notification. It runs for the lifetime of the
// device (started by StartInterruptPoll, stopped by
// StopInterruptPoll/Disconnect) and must never block on the IO gate or
// the open-handle spinlock for longer than a short critical section;
// the one thing it must never do is take the IO gate.
func (d *Device) interruptPollLoop(ctx context.Context) {
	buf := make([]byte, 2)

	for {
		n, err := d.transport.InterruptIn(ctx, buf, 0)
		if err != nil {
			if ctx.Err() != nil || errs.IsZombie(err) {
				return
			}
			if d.log != nil {
				d.log.Begin().Error('!', "interrupt-in: %s", err).Commit()
			}
			continue
		}

		if n < 2 {
			if d.log != nil {
				d.log.Begin().Error('!', "interrupt-in: short notification (%d bytes)", n).Commit()
			}
			continue
		}

		d.dispatchNotification(buf[0], buf[1])
	}
}

// dispatchNotification implements the interrupt-in demultiplexing rule:
// a first byte above 0x81 carries a READ_STATUS_BYTE notification tagged
// with its requesting transaction, while 0x81 carries a service request
// (SRQ) fanned out to every open handle.
func (d *Device) dispatchNotification(b0, b1 byte) {
	switch {
	case b0 > 0x81:
		if b0&0x7F != d.iinBTag {
			if d.log != nil {
				d.log.Begin().Error('!',
					"READ_STATUS_BYTE notification tag %d does not match current iin_bTag %d",
					b0&0x7F, d.iinBTag).Commit()
			}
		}

		d.bNotify1 = b0
		d.bNotify2 = b1
		d.iinDataValid.Store(true)
		d.wait.Broadcast()

	case b0 == 0x81:
		d.spin.Lock()
		for _, h := range d.handles {
			h.srqByte = b1
			h.srqAsserted.Store(true)
		}
		d.spin.Unlock()

		d.wait.Broadcast()

	default:
		if d.log != nil {
			d.log.Begin().Error('!', "interrupt-in: unexpected first byte 0x%02x", b0).Commit()
		}
	}
}

// ReadStatusByte implements the USB488 READ_STATUS_BYTE user operation:
// an already-pending SRQ is consumed without any transport traffic,
// otherwise a READ_STATUS_BYTE control request is issued and, on a
// device with an interrupt-in endpoint, the call blocks for the
// corresponding notification.
func (h *Handle) ReadStatusByte(ctx context.Context) (byte, error) {
	d := h.device

	if !d.caps.SupportsSimple() {
		return 0, errNotSup("READ_STATUS_BYTE requires USB488 simple capability")
	}

	if err := d.lockGate(); err != nil {
		return 0, err
	}
	defer d.unlockGate()

	if h.srqAsserted.CompareAndSwap(true, false) {
		return h.srqByte, nil
	}

	d.iinDataValid.Store(false)

	tag := d.iinBTag
	buf := make([]byte, 3)
	req := &transport.ControlRequest{
		Dir:     transport.DirIn,
		Type:    bmRequestTypeClassInterface,
		Request: reqReadStatusByte,
		Value:   uint16(tag),
		Data:    buf,
		Timeout: defaultControlTimeout,
	}

	n, err := d.transport.Control(ctx, req)
	if err != nil {
		return 0, classifyTransportErr(err)
	}
	if n < 3 || req.Data[0] != statusSuccess {
		return 0, errPerm("READ_STATUS_BYTE status byte missing or failed")
	}

	var stb byte

	if d.hasInterrupt {
		timeout := time.Duration(d.timeout()) * time.Millisecond
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if !d.iinDataValid.Load() {
			if err := d.wait.Wait(waitCtx); err != nil {
				if waitCtx.Err() != nil && ctx.Err() == nil {
					return 0, errs.New(errs.TIMEOUT, "READ_STATUS_BYTE timed out waiting for interrupt-in")
				}
				return 0, errs.New(errs.INTERRUPTED, "READ_STATUS_BYTE wait interrupted")
			}
		}

		stb = d.bNotify2
	} else {
		stb = req.Data[2]
	}

	d.iinBTag = nextIinTag(d.iinBTag)

	return stb, nil
}
