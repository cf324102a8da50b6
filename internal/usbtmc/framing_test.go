package usbtmc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEncodeDevDepMsgOutHeader(t *testing.T) {
	hdr := encodeDevDepMsgOut(5, 10, true)

	require.Equal(t, msgDevDepMsgOut, hdr[0])
	require.Equal(t, byte(5), hdr[1])
	require.Equal(t, invTag(5), hdr[2])
	require.Equal(t, byte(0), hdr[3])
	require.Equal(t, byte(10), hdr[4])
	require.Equal(t, byte(0x01), hdr[8])
}

func TestEncodeRequestDevDepMsgIn(t *testing.T) {
	hdr := encodeRequestDevDepMsgIn(7, 64, true, '\n')

	require.Equal(t, msgDevDepMsgIn, hdr[0])
	require.Equal(t, byte(7), hdr[1])
	require.Equal(t, invTag(7), hdr[2])
	require.Equal(t, byte(0x02), hdr[8])
	require.Equal(t, byte('\n'), hdr[9])
}

func TestHeaderTagNeverZero(t *testing.T) {
	tag := byte(254)
	for i := 0; i < 10; i++ {
		tag = nextTag(tag)
		require.NotZero(t, tag)

		hdr := encodeDevDepMsgOut(tag, 0, false)
		require.NotZero(t, hdr[1])
		require.Equal(t, byte(^hdr[1]), hdr[2])
	}
}

func TestNextIinTagStaysInRange(t *testing.T) {
	tag := byte(2)
	for i := 0; i < 300; i++ {
		require.GreaterOrEqual(t, tag, byte(2))
		require.LessOrEqual(t, tag, byte(127))
		tag = nextIinTag(tag)
	}
}

func TestDecodeBulkInHeaderRoundTrip(t *testing.T) {
	hdr := encodeRequestDevDepMsgIn(9, 100, false, 0)
	_ = hdr // the request header; the device's reply is a separate message

	replyHdr := make([]byte, HeaderSize)
	replyHdr[0] = msgDevDepMsgIn
	replyHdr[1] = 9
	replyHdr[2] = invTag(9)
	replyHdr[4] = 10 // n_characters = 10, little-endian
	replyHdr[8] = 0x01

	reply, err := decodeBulkInHeader(replyHdr, 9, 100)
	require.NoError(t, err)

	want := bulkInReply{tag: 9, nCharacters: 10, eom: true}
	if diff := cmp.Diff(want, reply, cmp.AllowUnexported(bulkInReply{})); diff != "" {
		t.Fatalf("decoded reply mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeBulkInHeaderRejectsTagMismatch(t *testing.T) {
	replyHdr := make([]byte, HeaderSize)
	replyHdr[0] = msgDevDepMsgIn
	replyHdr[1] = 3
	replyHdr[2] = invTag(3)

	_, err := decodeBulkInHeader(replyHdr, 9, 100)
	require.Error(t, err)
}

func TestDecodeBulkInHeaderRejectsOverReport(t *testing.T) {
	replyHdr := make([]byte, HeaderSize)
	replyHdr[0] = msgDevDepMsgIn
	replyHdr[1] = 1
	replyHdr[2] = invTag(1)
	replyHdr[4] = 200 // n_characters = 200 > requested 100

	_, err := decodeBulkInHeader(replyHdr, 1, 100)
	require.Error(t, err)
}

func TestDecodeBulkInHeaderRejectsShortBuffer(t *testing.T) {
	_, err := decodeBulkInHeader([]byte{1, 2, 3}, 1, 100)
	require.Error(t, err)
}

func TestPadLen(t *testing.T) {
	require.Equal(t, 0, padLen(12))
	require.Equal(t, 3, padLen(13))
	require.Equal(t, 2, padLen(14))
	require.Equal(t, 1, padLen(15))
}
