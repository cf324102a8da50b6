package usbtmc

import "sync/atomic"

// Handle is the per-open-file record. It inherits
// TermChar/TermCharEnabled/AutoAbort/EomVal from the device at open
// time as starting defaults; once open, reads/writes/control operations
// consult the *handle's* copies, never the device's.
type Handle struct {
	device *Device

	termChar        byte
	termCharEnabled bool
	autoAbort       bool
	eomVal          bool

	srqByte     byte
	srqAsserted atomic.Bool
}

// Open creates a new Handle on d, incrementing its refcount and linking
// it into the device's open-handle list.
func (d *Device) Open() *Handle {
	h := &Handle{
		device:          d,
		termChar:        d.defaultTermChar,
		termCharEnabled: d.defaultTermCharEnabled,
		autoAbort:       d.defaultAutoAbort,
		eomVal:          d.defaultEomVal,
	}

	d.addRef()

	d.spin.Lock()
	d.handles = append(d.handles, h)
	d.spin.Unlock()

	return h
}

// Close releases h: unlinks it from the device's open-handle list and
// drops the device's refcount, possibly destroying the device record if
// this was the last reference.
func (h *Handle) Close() {
	d := h.device

	d.spin.Lock()
	for i, cur := range d.handles {
		if cur == h {
			d.handles = append(d.handles[:i], d.handles[i+1:]...)
			break
		}
	}
	d.spin.Unlock()

	d.release()
}

// Device returns the handle's owning device
func (h *Handle) Device() *Device {
	return h.device
}

// TermChar returns the handle's current TermChar configuration
func (h *Handle) TermChar() (char byte, enabled bool) {
	return h.termChar, h.termCharEnabled
}

// SetTermChar mutates only this handle's copy, not the device's: it
// seeds new handles at open time but a later change on one handle never
// affects others.
func (h *Handle) SetTermChar(char byte, enabled bool) error {
	if enabled && !h.device.caps.SupportsTermChar() {
		return errBadReq("device does not support TermChar")
	}
	h.termChar = char
	h.termCharEnabled = enabled
	return nil
}

// AutoAbort returns whether this handle runs the abort state machine on
// a read/write fault
func (h *Handle) AutoAbort() bool {
	return h.autoAbort
}

// SetAutoAbort mutates only this handle's copy
func (h *Handle) SetAutoAbort(enabled bool) {
	h.autoAbort = enabled
}

// EomVal returns the EOM bit this handle's writes assert on their final
// chunk
func (h *Handle) EomVal() bool {
	return h.eomVal
}

// SetEomVal mutates only this handle's copy
func (h *Handle) SetEomVal(enabled bool) {
	h.eomVal = enabled
}
