package usbtmc

import (
	"context"
	"testing"

	"github.com/khainav/linux-usbtmc/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestSetTimeoutRejectsBelowMinimum(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h := d.Open()

	err := h.SetTimeout(context.Background(), 100)
	require.Error(t, err)

	got, err := h.GetTimeout(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(DefaultTimeoutMs), got)
}

func TestSetTimeoutAccepted(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h := d.Open()

	require.NoError(t, h.SetTimeout(context.Background(), 2000))

	got, err := h.GetTimeout(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(2000), got)
}

func TestIndicatorPulse(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		require.Equal(t, reqIndicatorPulse, int(req.Request))
		req.Data[0] = statusSuccess
		return 1, nil
	}

	require.NoError(t, h.IndicatorPulse(context.Background()))
}

func TestCtrlRequestGenericOut(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	var seen []byte
	ft.ControlHandler = func(req *transport.ControlRequest) (int, error) {
		seen = append([]byte(nil), req.Data...)
		return len(req.Data), nil
	}

	payload := []byte{1, 2, 3, 4}
	n, err := h.CtrlRequest(context.Background(), 0x40, 0x99, 0, 0, payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, seen)
}

func TestCtrlRequestRejectsOversizedBuffer(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h := d.Open()

	buf := make([]byte, maxGenericCtrlRequestLength+1)
	_, err := h.CtrlRequest(context.Background(), 0x40, 0x99, 0, 0, buf)
	require.Error(t, err)
}

func TestRenControlRequiresSimpleCapability(t *testing.T) {
	d, _ := newTestDevice(t, false)
	d.caps.USB488Caps = 0
	h := d.Open()

	err := h.RenControl(context.Background(), true)
	require.Error(t, err)
}

func TestTriggerEmitsBulkOutFrame(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	require.NoError(t, h.Trigger(context.Background()))
	require.Len(t, ft.BulkOutFrames, 1)
	require.Equal(t, byte(128), ft.BulkOutFrames[0][0])
}

func TestClearInOutHalt(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	require.NoError(t, h.ClearInHalt(context.Background()))
	require.NoError(t, h.ClearOutHalt(context.Background()))
	require.Equal(t, []transport.Endpoint{d.BulkInEP, d.BulkOutEP}, ft.ClearedHalts())
}
