// Package transport defines the boundary between usbtmcd's USBTMC engine
// and the underlying USB stack, and provides a github.com/google/gousb
// backed implementation of it.
//
// This splits device discovery (atop *gousb.Device) from raw transfers,
// but since gousb's endpoint types already wrap libusb transfers behind
// a blocking io.Reader/io.Writer, there is no need for a cgo
// callback/doneChan bridge: a Transport method either blocks until the
// transfer completes or returns once ctx is canceled.
package transport

import (
	"context"
	"time"
)

// Direction is the direction of a control transfer, selected from
// bmRequestType bit 7 as the USB class spec requires.
type Direction bool

const (
	// DirOut is a host-to-device control transfer
	DirOut Direction = false
	// DirIn is a device-to-host control transfer
	DirIn Direction = true
)

// ControlRequest describes a single USB control transfer, as issued
// against the device's default control pipe.
type ControlRequest struct {
	Dir      Direction
	Type     uint8 // bmRequestType bits 6:5 (standard/class/vendor) and 4:0 (recipient)
	Request  uint8 // bRequest
	Value    uint16
	Index    uint16
	Data     []byte // Request payload (Dir == DirOut) or receive buffer (Dir == DirIn)
	Timeout  time.Duration
}

// Endpoint identifies a USBTMC bulk or interrupt endpoint by its address
type Endpoint uint8

// Transport is everything the USBTMC engine needs from the USB layer: one
// control pipe, a bulk-out and bulk-in pipe, and an interrupt-in pipe used
// to deliver notifications (read status byte / service request) out of
// band from the bulk transfers.
//
// A Transport corresponds to one claimed USBTMC interface on one device.
// It is not safe for concurrent control/bulk calls from multiple
// goroutines without external serialization - the engine's IO gate is
// responsible for that; InterruptIn is the one call meant to run
// concurrently with everything else, from its own goroutine.
type Transport interface {
	// Control performs a control transfer on endpoint 0. For DirIn
	// requests, req.Data is resized to the number of bytes actually
	// transferred.
	Control(ctx context.Context, req *ControlRequest) (int, error)

	// BulkOut writes one bulk-out transfer on the device's bulk-out
	// endpoint, returning the number of bytes written.
	BulkOut(ctx context.Context, data []byte, timeout time.Duration) (int, error)

	// BulkIn reads one bulk-in transfer into buf, returning the number of
	// bytes read.
	BulkIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// ClearHalt clears a stalled condition on ep, via the standard
	// CLEAR_FEATURE(ENDPOINT_HALT) control request.
	ClearHalt(ctx context.Context, ep Endpoint) error

	// InterruptIn blocks reading one interrupt-in transfer into buf, or
	// until ctx is canceled. Devices without an interrupt-in endpoint
	// report ErrNoInterruptEndpoint.
	InterruptIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error)

	// HasInterruptIn reports whether the claimed interface has a usable
	// interrupt-in endpoint
	HasInterruptIn() bool

	// Reset issues a USB port reset on the underlying device
	Reset(ctx context.Context) error

	// Close releases the claimed interface and the underlying device
	// handle. Safe to call more than once.
	Close() error
}
