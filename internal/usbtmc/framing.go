// Package usbtmc implements the USBTMC bulk-transfer framing protocol,
// the class and USB488 control-request dispatch, the abort/clear state
// machines, the interrupt-in notification demultiplexer, and the
// device/handle lifecycle that ties them together.
package usbtmc

import (
	"encoding/binary"

	"github.com/khainav/linux-usbtmc/internal/errs"
)

// Message IDs, wire protocol
const (
	msgDevDepMsgOut uint8 = 1
	msgDevDepMsgIn  uint8 = 2
	msgTrigger      uint8 = 128
)

// HeaderSize is the fixed size of a USBTMC bulk header
const HeaderSize = 12

// MinTimeoutMs is the floor for the device timeout, in milliseconds
const MinTimeoutMs = 500

// DefaultTimeoutMs is the out-of-the-box per-request timeout
const DefaultTimeoutMs = 5000

// MinIOBufferSize/DefaultIOBufferSize bound the bulk transfer staging
// buffer
const (
	MinIOBufferSize     = 512
	DefaultIOBufferSize = 2048
)

// MaxReadsToClear bounds the abort/clear drain loops
const MaxReadsToClear = 100

// invTag returns the one's complement of a bTag
func invTag(tag byte) byte {
	return tag ^ 0xFF
}

// nextTag advances a bTag, skipping the reserved value 0 on wraparound
func nextTag(tag byte) byte {
	tag++
	if tag == 0 {
		tag = 1
	}
	return tag
}

// nextIinTag advances iin_bTag within [2, 127]
func nextIinTag(tag byte) byte {
	tag++
	if tag > 127 {
		tag = 2
	}
	return tag
}

// encodeDevDepMsgOut builds the 12-byte DEV_DEP_MSG_OUT header
func encodeDevDepMsgOut(tag byte, transferSize uint32, eom bool) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	hdr[0] = msgDevDepMsgOut
	hdr[1] = tag
	hdr[2] = invTag(tag)
	binary.LittleEndian.PutUint32(hdr[4:8], transferSize)
	if eom {
		hdr[8] = 0x01
	}
	return hdr
}

// encodeRequestDevDepMsgIn builds the 12-byte REQUEST_DEV_DEP_MSG_IN header
func encodeRequestDevDepMsgIn(tag byte, transferSize uint32, termCharEnabled bool, termChar byte) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	hdr[0] = msgDevDepMsgIn
	hdr[1] = tag
	hdr[2] = invTag(tag)
	binary.LittleEndian.PutUint32(hdr[4:8], transferSize)
	if termCharEnabled {
		hdr[8] = 0x02
		hdr[9] = termChar
	}
	return hdr
}

// encodeTrigger builds the 12-byte TRIGGER header
func encodeTrigger(tag byte) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	hdr[0] = msgTrigger
	hdr[1] = tag
	hdr[2] = invTag(tag)
	return hdr
}

// padLen returns how many zero bytes must follow n bytes to reach the
// next 4-byte boundary
func padLen(n int) int {
	if r := n % 4; r != 0 {
		return 4 - r
	}
	return 0
}

// bulkInReply is the decoded DEV_DEP_MSG_IN reply header
type bulkInReply struct {
	tag         byte
	nCharacters uint32
	eom         bool
}

// decodeBulkInHeader validates and decodes the first 12 bytes of a
// DEV_DEP_MSG_IN reply against the tag we last sent on bulk-out.
func decodeBulkInHeader(buf []byte, wantTag byte, requested uint32) (bulkInReply, error) {
	var reply bulkInReply

	if len(buf) < HeaderSize {
		return reply, errs.New(errs.PERM, "bulk-in reply shorter than header (%d bytes)", len(buf))
	}

	if buf[0] != msgDevDepMsgIn {
		return reply, errs.New(errs.PERM, "bulk-in reply has MsgID %d, want %d", buf[0], msgDevDepMsgIn)
	}

	if buf[1] != wantTag {
		return reply, errs.New(errs.PERM, "bulk-in reply tag %d does not match last bTag %d sent", buf[1], wantTag)
	}

	reply.tag = buf[1]
	reply.nCharacters = binary.LittleEndian.Uint32(buf[4:8])
	reply.eom = buf[8]&0x01 != 0

	if reply.nCharacters > requested {
		return reply, errs.New(errs.PERM, "device reported n_characters %d exceeding requested %d",
			reply.nCharacters, requested)
	}

	return reply, nil
}
