package usbtmc

import (
	"testing"

	"github.com/khainav/linux-usbtmc/internal/logger"
	"github.com/khainav/linux-usbtmc/internal/transport"
	"github.com/khainav/linux-usbtmc/internal/transport/faketransport"
)

const (
	testBulkIn    transport.Endpoint = 0x81
	testBulkOut   transport.Endpoint = 0x02
	testInterrupt transport.Endpoint = 0x83
)

// newTestDevice builds a Device wired to a fresh faketransport.Fake, with
// full capabilities (TermChar + USB488 simple operations) already probed.
func newTestDevice(t *testing.T, hasInterrupt bool) (*Device, *faketransport.Fake) {
	t.Helper()

	ft := faketransport.New(hasInterrupt)
	d := NewDevice(ft, testBulkIn, testBulkOut, testInterrupt, hasInterrupt, 64, logger.New().ToNowhere())
	d.caps = Capabilities{
		DeviceCaps:          0x01,
		USB488InterfaceCaps: 0x07,
		USB488DeviceCaps:    0x0F,
	}
	d.caps.USB488Caps = (d.caps.USB488InterfaceCaps & 0x07) | ((d.caps.USB488DeviceCaps & 0x0F) << 4)

	return d, ft
}
