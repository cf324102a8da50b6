package usbtmc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/logger"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// Capabilities is the coalesced result of the GET_CAPABILITIES probe.
type Capabilities struct {
	InterfaceCaps       byte
	DeviceCaps          byte
	USB488InterfaceCaps byte
	USB488DeviceCaps    byte
	USB488Caps          byte // coalesced: (iface488&0x07) | ((dev488&0x0F)<<4)
}

// SupportsTermChar reports whether the device advertises TermChar support
// (DeviceCaps bit 0), gating CONFIG_TERMCHAR
func (c Capabilities) SupportsTermChar() bool {
	return c.DeviceCaps&0x01 != 0
}

// SupportsSimple reports whether USB488 "simple" operations
// (REN_CONTROL/GOTO_LOCAL/LOCAL_LOCKOUT) are available
func (c Capabilities) SupportsSimple() bool {
	return c.USB488Caps&0x01 != 0
}

// Device is the per-matched-interface record, shared across every open
// Handle and the interrupt-in poll goroutine.
type Device struct {
	transport transport.Transport
	log       *logger.Logger

	BulkInEP         transport.Endpoint
	BulkOutEP        transport.Endpoint
	InterruptEP      transport.Endpoint
	hasInterrupt     bool
	iinMaxPacketSize int

	caps Capabilities

	// ioGate is the sleepable, exclusive lock held for the entire
	// duration of read, write, any control dispatch, and disconnect.
	// It also guards bTag/bTagLastWrite/bTagLastRead/iinBTag, which are
	// only ever mutated by IO paths.
	ioGate sync.Mutex

	bTag          byte
	bTagLastWrite byte
	bTagLastRead  byte
	iinBTag       byte

	// spin is the non-sleepable lock protecting the open-handle list and
	// every handle's SRQ slot. It is acquired from the interrupt-poll
	// goroutine, so nothing held while holding spin may block.
	spin    sync.Mutex
	handles []*Handle

	bNotify1     byte
	bNotify2     byte
	iinDataValid atomic.Bool

	wait *waitObject

	defaultTermChar        byte
	defaultTermCharEnabled bool
	defaultAutoAbort       bool
	defaultEomVal          bool
	timeoutMs              uint32

	zombie atomic.Bool

	// refcount covers: +1 for the probe, +1 per open Handle, +1 while the
	// interrupt-poll goroutine is running
	refcount        int32
	interruptCancel context.CancelFunc
	interruptDone   chan struct{}
}

// NewDevice constructs a Device bound to an already-opened transport.
// Capabilities must be probed separately via ProbeCapabilities.
func NewDevice(t transport.Transport, bulkIn, bulkOut, interruptEP transport.Endpoint,
	hasInterrupt bool, iinMaxPacketSize int, log *logger.Logger) *Device {

	d := &Device{
		transport:        t,
		log:              log,
		BulkInEP:         bulkIn,
		BulkOutEP:        bulkOut,
		InterruptEP:      interruptEP,
		hasInterrupt:     hasInterrupt,
		iinMaxPacketSize: iinMaxPacketSize,
		bTag:             1,
		iinBTag:          2,
		wait:             newWaitObject(),
		defaultTermChar:  '\n',
		defaultEomVal:    true,
		timeoutMs:        DefaultTimeoutMs,
		refcount:         1, // probe reference
	}

	return d
}

// IsZombie reports whether the device has been disconnected
func (d *Device) IsZombie() bool {
	return d.zombie.Load()
}

// checkZombie returns NODEV if the device has been disconnected: any
// operation begun after disconnect observes zombie and returns NODEV.
func (d *Device) checkZombie() error {
	if d.zombie.Load() {
		return errs.ErrZombie
	}
	return nil
}

// lockGate acquires the IO gate and re-checks zombie, so callers get a
// single guarded critical section that serializes all IO-issuing code
// paths and excludes them against the zombie transition.
func (d *Device) lockGate() error {
	d.ioGate.Lock()
	if err := d.checkZombie(); err != nil {
		d.ioGate.Unlock()
		return err
	}
	return nil
}

func (d *Device) unlockGate() {
	d.ioGate.Unlock()
}

// nextBulkOutTag advances bTag (under the IO gate) and snapshots it into
// bTagLastWrite.
func (d *Device) nextBulkOutTag() byte {
	d.bTag = nextTag(d.bTag)
	d.bTagLastWrite = d.bTag
	return d.bTag
}

// nextBulkInTag advances bTag (under the IO gate) and snapshots it into
// bTagLastRead, used to correlate the next bulk-in reply.
func (d *Device) nextBulkInTag() byte {
	d.bTag = nextTag(d.bTag)
	d.bTagLastRead = d.bTag
	return d.bTag
}

// timeout returns the device's configured timeout
func (d *Device) timeout() uint32 {
	return d.timeoutMs
}
