package usbtmc

import (
	"context"
	"testing"

	"github.com/khainav/linux-usbtmc/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestAbortBulkInConverges(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	// A short packet lets drainBulkIn converge on its first read.
	ft.PushBulkIn([]byte{0x00})

	calls := 0
	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		calls++
		switch req.Request {
		case reqInitiateAbortBulkIn:
			require.EqualValues(t, 0x22, req.Type, "ABORT_BULK_IN must be a class request to the endpoint")
			req.Data[0] = statusSuccess
			return 2, nil
		case reqCheckAbortBulkInStatus:
			req.Data[0] = statusSuccess
			req.Data[2] = 0
			return 8, nil
		}
		t.Fatalf("unexpected request 0x%02x", req.Request)
		return 0, nil
	}

	err := h.AbortBulkIn(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, calls, 2)
}

func TestAbortBulkOutClearsHaltOnSuccess(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		switch req.Request {
		case reqInitiateAbortBulkOut:
			req.Data[0] = statusSuccess
			return 2, nil
		case reqCheckAbortBulkOutStatus:
			req.Data[0] = statusSuccess
			return 8, nil
		}
		t.Fatalf("unexpected request 0x%02x", req.Request)
		return 0, nil
	}

	err := h.AbortBulkOut(context.Background())
	require.NoError(t, err)
	require.Equal(t, []transport.Endpoint{testBulkOutEP(d)}, ft.ClearedHalts())
}

func testBulkOutEP(d *Device) transport.Endpoint {
	return d.BulkOutEP
}

func TestClearConverges(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		switch req.Request {
		case reqInitiateClear:
			req.Data[0] = statusSuccess
			return 1, nil
		case reqCheckClearStatus:
			req.Data[0] = statusSuccess
			req.Data[1] = 0
			return 2, nil
		}
		t.Fatalf("unexpected request 0x%02x", req.Request)
		return 0, nil
	}

	err := h.Clear(context.Background())
	require.NoError(t, err)
}
