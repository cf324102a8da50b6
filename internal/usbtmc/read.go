package usbtmc

import (
	"context"
	"time"

	"github.com/khainav/linux-usbtmc/internal/errs"
)

// Read performs the request-then-drain read engine. count is the
// maximum number of bytes the caller wants; ioBufferSize bounds the
// size of each bulk-in chunk (clamped by the caller to [512, ...], a
// multiple of 4).
func (h *Handle) Read(ctx context.Context, count int, ioBufferSize int) ([]byte, error) {
	d := h.device

	if count < 0 {
		return nil, errBadArg("negative count")
	}

	if err := d.lockGate(); err != nil {
		return nil, err
	}
	defer d.unlockGate()

	out, err := d.readLocked(ctx, h, count, ioBufferSize)
	if err != nil && h.autoAbort {
		// The abort's own result is logged but never masks the original
		// fault
		_ = d.abortBulkInLocked(ctx)
	}

	return out, err
}

func (d *Device) readLocked(ctx context.Context, h *Handle, count int, ioBufferSize int) ([]byte, error) {
	timeout := time.Duration(d.timeout()) * time.Millisecond

	tag := d.nextBulkInTag()
	hdr := encodeRequestDevDepMsgIn(tag, uint32(count), h.termCharEnabled, h.termChar)

	if _, err := d.transport.BulkOut(ctx, hdr[:], timeout); err != nil {
		return nil, classifyTransportErr(err)
	}

	out := make([]byte, 0, count)
	remaining := count
	firstChunk := true

	chunk := make([]byte, ioBufferSize)

	for remaining > 0 {
		n, err := d.transport.BulkIn(ctx, chunk, timeout)
		if err != nil {
			return out, classifyTransportErr(err)
		}

		data := chunk[:n]
		eom := false

		if firstChunk {
			firstChunk = false

			reply, err := decodeBulkInHeader(data, tag, uint32(count))
			if err != nil {
				return out, err
			}

			data = data[HeaderSize:]
			if int(reply.nCharacters) < remaining {
				remaining = int(reply.nCharacters)
			}
			eom = reply.eom
		}

		if len(data) > remaining {
			data = data[:remaining]
		}

		out = append(out, data...)
		remaining -= len(data)

		if eom && remaining <= 0 {
			break
		}

		if n == 0 {
			// Short of a declared n_characters but the device stopped
			// sending; treat as end of message rather than spin.
			break
		}
	}

	return out, nil
}

// classifyTransportErr maps a transport-layer error to the engine's own
// vocabulary. Most transport errors already carry an errs.Kind (see
// internal/transport/errors.go); this only needs to special-case
// disconnect, wrapping it as NODEV.
func classifyTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if errs.IsZombie(err) {
		return errs.ErrZombie
	}
	return err
}
