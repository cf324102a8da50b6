package usbtmc

import (
	"context"
	"sync/atomic"
)

// addRef increments the device's reference count
func (d *Device) addRef() {
	atomic.AddInt32(&d.refcount, 1)
}

// release drops the device's reference count, destroying the device
// record once it reaches zero. This may happen long after physical
// disconnect, once the last open handle finally closes.
func (d *Device) release() {
	if atomic.AddInt32(&d.refcount, -1) == 0 {
		d.destroy()
	}
}

// destroy is called exactly once, when the last reference drops
func (d *Device) destroy() {
	d.transport.Close()
}

// StartInterruptPoll launches the interrupt-in poll goroutine that
// continuously resubmits the interrupt-in read while the device is
// present. It increments the device's refcount for the lifetime of the
// goroutine; call StopInterruptPoll (or Disconnect) to release it.
func (d *Device) StartInterruptPoll() {
	if !d.hasInterrupt {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.interruptCancel = cancel
	d.interruptDone = make(chan struct{})

	d.addRef()

	go func() {
		defer close(d.interruptDone)
		defer d.release()
		d.interruptPollLoop(ctx)
	}()
}

// StopInterruptPoll cancels the interrupt-in poll goroutine and waits for
// it to exit
func (d *Device) StopInterruptPoll() {
	if d.interruptCancel == nil {
		return
	}
	d.interruptCancel()
	<-d.interruptDone
}

// Disconnect runs the disconnect procedure: take the IO gate, set
// zombie, wake everyone, release the gate, then stop the interrupt poll
// and drop the probe reference. Safe to call once per device; the
// caller (the PnP manager) is responsible for not calling it twice.
func (d *Device) Disconnect() {
	d.ioGate.Lock()
	d.zombie.Store(true)
	d.wait.Broadcast()
	d.ioGate.Unlock()

	d.StopInterruptPoll()

	d.release() // drop the probe reference
}

// HandleCount returns the number of currently open handles, used by the
// status command (supplemented feature).
func (d *Device) HandleCount() int {
	d.spin.Lock()
	defer d.spin.Unlock()
	return len(d.handles)
}

// Capabilities returns the device's cached capability set
func (d *Device) Capabilities() Capabilities {
	return d.caps
}
