package usbtmc

import "time"

// Class-specific control requests (bRequest values)
const (
	reqInitiateAbortBulkOut     = 1
	reqCheckAbortBulkOutStatus  = 2
	reqInitiateAbortBulkIn      = 3
	reqCheckAbortBulkInStatus   = 4
	reqInitiateClear            = 5
	reqCheckClearStatus         = 6
	reqGetCapabilities          = 7
	reqIndicatorPulse           = 64

	// USB488 subclass requests
	reqReadStatusByte = 128
	reqRenControl     = 160
	reqGotoLocal      = 161
	reqLocalLockout   = 162
)

// bmRequestType byte values. Class requests target either the endpoint
// (ABORT_BULK_*) or the interface (everything else). usbTypeClass is
// bmRequestType bit 5 (USB 2.0 Table 9-2, ch9.h USB_TYPE_CLASS); without
// it these are indistinguishable from standard requests to the same
// recipient.
const (
	usbTypeClass = 0x20

	bmRequestTypeClassEndpoint  = usbTypeClass | 0x02 // class, recipient=endpoint, host-to-device base
	bmRequestTypeClassInterface = usbTypeClass | 0x01 // class, recipient=interface, host-to-device base
)

// Standard one-byte status codes returned by the class handshake
// requests
const (
	statusSuccess byte = 0x01
	statusPending byte = 0x02
	statusFailed  byte = 0x81
)

// CLEAR_FEATURE(ENDPOINT_HALT), issued as a standard request against the
// bulk endpoints
const (
	stdReqClearFeature  = 0x01
	featureEndpointHalt = 0x00
)

// defaultControlTimeout bounds control requests issued internally by the
// engine (capability probe, abort/clear handshakes) that are not already
// covered by the device's configured operation timeout.
const defaultControlTimeout = 5 * time.Second
