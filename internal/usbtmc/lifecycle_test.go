package usbtmc

import (
	"context"
	"testing"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestDisconnectMarksZombieAndRejectsNewIO(t *testing.T) {
	d, _ := newTestDevice(t, false)
	h := d.Open()

	d.Disconnect()

	require.True(t, d.IsZombie())

	_, err := h.Read(context.Background(), 1, 64)
	require.True(t, errs.IsZombie(err))
}

func TestReleaseDestroysOnceRefcountHitsZero(t *testing.T) {
	d, ft := newTestDevice(t, false)
	h := d.Open()

	h.Close()   // drops the handle's reference
	d.release() // drops the probe's reference

	require.True(t, ft.Closed())
}

func TestStartStopInterruptPoll(t *testing.T) {
	d, ft := newTestDevice(t, true)
	h := d.Open()

	d.StartInterruptPoll()
	ft.PushInterrupt([]byte{0x81, 0x10})

	// Give the poll goroutine a moment to dispatch, then verify via the
	// SRQ side effect rather than a timing-sensitive assertion: poll the
	// handle's SRQ flag until it observes the notification or the test
	// context expires.
	ctx, cancel := context.WithTimeout(context.Background(), defaultControlTimeout)
	defer cancel()

	for {
		if h.srqAsserted.Load() {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("SRQ was never dispatched by the interrupt poll loop")
		default:
		}
	}

	d.StopInterruptPoll()
}
