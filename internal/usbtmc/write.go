package usbtmc

import (
	"context"
	"time"

	"github.com/khainav/linux-usbtmc/internal/errs"
)

// Write performs the chunked write engine. There is no short-write
// semantics: it returns either len(data) or an error.
func (h *Handle) Write(ctx context.Context, data []byte, ioBufferSize int) (int, error) {
	d := h.device

	if err := d.lockGate(); err != nil {
		return 0, err
	}
	defer d.unlockGate()

	n, err := d.writeLocked(ctx, h, data, ioBufferSize)
	if err != nil && h.autoAbort {
		_ = d.abortBulkOutLocked(ctx)
	}

	return n, err
}

func (d *Device) writeLocked(ctx context.Context, h *Handle, data []byte, ioBufferSize int) (int, error) {
	timeout := time.Duration(d.timeout()) * time.Millisecond

	maxPayload := ioBufferSize - HeaderSize
	if maxPayload <= 0 {
		maxPayload = MinIOBufferSize - HeaderSize
	}

	remaining := data
	total := len(data)

	for {
		n := len(remaining)
		if n > maxPayload {
			n = maxPayload
		}

		chunk := remaining[:n]
		remaining = remaining[n:]
		last := len(remaining) == 0

		tag := d.nextBulkOutTag()
		eom := last && h.eomVal
		hdr := encodeDevDepMsgOut(tag, uint32(n), eom)

		frame := make([]byte, 0, HeaderSize+n+3)
		frame = append(frame, hdr[:]...)
		frame = append(frame, chunk...)
		frame = append(frame, make([]byte, padLen(len(frame)))...)

		if err := d.sendFrame(ctx, frame, timeout); err != nil {
			return total - len(remaining) - n, err
		}

		if last {
			break
		}
	}

	return total, nil
}

// sendFrame writes frame to the bulk-out endpoint, resending any
// remainder if a partial write occurs.
func (d *Device) sendFrame(ctx context.Context, frame []byte, timeout time.Duration) error {
	for len(frame) > 0 {
		n, err := d.transport.BulkOut(ctx, frame, timeout)
		if err != nil {
			return classifyTransportErr(err)
		}
		if n == 0 {
			return errs.New(errs.IO, "bulk-out made no progress")
		}
		frame = frame[n:]
	}
	return nil
}
