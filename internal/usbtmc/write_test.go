package usbtmc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSplitIntoChunks(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	// maxPayload = ioBufferSize - HeaderSize = 19 - 12 = 7 bytes/chunk.
	data := []byte("0123456789ABCDEFGHIJ") // 20 bytes -> 3 chunks (7, 7, 6)

	n, err := h.Write(context.Background(), data, 19)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	require.Len(t, ft.BulkOutFrames, 3)

	var reassembled []byte
	for i, frame := range ft.BulkOutFrames {
		require.GreaterOrEqual(t, len(frame), HeaderSize)
		require.Equal(t, 0, len(frame)%4, "frame %d not padded to a 4-byte boundary", i)

		payloadLen := int(frame[4]) | int(frame[5])<<8 | int(frame[6])<<16 | int(frame[7])<<24
		eom := frame[8]&0x01 != 0

		isLast := i == len(ft.BulkOutFrames)-1
		require.Equal(t, isLast, eom, "EOM should only be set on the final chunk")

		reassembled = append(reassembled, frame[HeaderSize:HeaderSize+payloadLen]...)
	}

	require.Equal(t, data, reassembled)
}

func TestWriteFailurePartialProgress(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()
	h.SetAutoAbort(true)

	ft.SetBulkOutErr(errBadArg("simulated bulk-out failure"))

	n, err := h.Write(context.Background(), []byte("hello"), 64)
	require.Error(t, err)
	require.Equal(t, 0, n)
}
