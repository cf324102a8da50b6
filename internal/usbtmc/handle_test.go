package usbtmc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenInheritsDeviceDefaults(t *testing.T) {
	d, _ := newTestDevice(t, false)
	d.defaultTermChar = '\r'
	d.defaultTermCharEnabled = true
	d.defaultAutoAbort = true
	d.defaultEomVal = true

	h := d.Open()

	char, enabled := h.TermChar()
	require.Equal(t, byte('\r'), char)
	require.True(t, enabled)
	require.True(t, h.AutoAbort())
	require.True(t, h.EomVal())
	require.Equal(t, 1, d.HandleCount())
}

func TestPerHandleTermCharDoesNotAffectOtherHandles(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h1 := d.Open()
	h2 := d.Open()

	require.NoError(t, h1.SetTermChar('#', true))

	char, enabled := h2.TermChar()
	require.False(t, enabled)
	require.NotEqual(t, byte('#'), char)
}

func TestSetTermCharRejectedWithoutCapability(t *testing.T) {
	d, _ := newTestDevice(t, false)
	d.caps.DeviceCaps = 0
	h := d.Open()

	err := h.SetTermChar('\n', true)
	require.Error(t, err)
}

func TestCloseDropsFromOpenHandleList(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h1 := d.Open()
	h2 := d.Open()
	require.Equal(t, 2, d.HandleCount())

	h1.Close()
	require.Equal(t, 1, d.HandleCount())

	h2.Close()
	require.Equal(t, 0, d.HandleCount())
}
