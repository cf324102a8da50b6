package usbtmc

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/transport"
	"github.com/stretchr/testify/require"
)

// buildBulkInFrame constructs a DEV_DEP_MSG_IN reply: a 12-byte header
// followed by payload, as a real device would send on the first packet
// of a response.
func buildBulkInFrame(tag byte, nCharacters uint32, eom bool, payload []byte) []byte {
	hdr := make([]byte, HeaderSize)
	hdr[0] = msgDevDepMsgIn
	hdr[1] = tag
	hdr[2] = invTag(tag)
	binary.LittleEndian.PutUint32(hdr[4:8], nCharacters)
	if eom {
		hdr[8] = 0x01
	}
	return append(hdr, payload...)
}

func TestReadSimple(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	want := []byte("HELLO")
	tag := nextTag(d.bTag) // the tag readLocked is about to assign
	ft.PushBulkIn(buildBulkInFrame(tag, uint32(len(want)), true, want))

	out, err := h.Read(context.Background(), len(want), 64)
	require.NoError(t, err)
	require.Equal(t, want, out)

	require.Len(t, ft.BulkOutFrames, 1)
	require.Equal(t, msgDevDepMsgIn, ft.BulkOutFrames[0][0])
}

func TestReadMultiChunk(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	tag := nextTag(d.bTag)
	ft.PushBulkIn(buildBulkInFrame(tag, 10, false, []byte("ABCD")))
	ft.PushBulkIn([]byte("EFGHIJ"))

	out, err := h.Read(context.Background(), 10, 16)
	require.NoError(t, err)
	require.Equal(t, []byte("ABCDEFGHIJ"), out)
}

func TestReadTagMismatchTriggersAutoAbort(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()
	h.SetAutoAbort(true)

	wrongTag := invTag(nextTag(d.bTag)) // guaranteed not to equal the real tag
	ft.PushBulkIn(buildBulkInFrame(wrongTag, 5, true, []byte("HELLO")))

	abortCalled := false
	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		abortCalled = true
		require.Equal(t, reqInitiateAbortBulkIn, int(req.Request))
		req.Data[0] = statusFailed
		return 2, nil
	}

	_, err := h.Read(context.Background(), 5, 64)
	require.Error(t, err)
	require.Equal(t, errs.PERM, errs.KindOf(err))
	require.True(t, abortCalled)
}

func TestReadHotUnplugMidRead(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	ft.SetBulkInErr(errs.ErrZombie)

	_, err := h.Read(context.Background(), 5, 64)
	require.Error(t, err)
	require.True(t, errs.IsZombie(err))
}
