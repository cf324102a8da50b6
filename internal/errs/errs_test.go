package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAndKindOf(t *testing.T) {
	cause := errors.New("stall on endpoint 1")
	err := Wrap(TIMEOUT, cause, "bulk read timed out")

	require.Equal(t, TIMEOUT, KindOf(err))
	require.True(t, errors.Is(err, cause))
	require.Contains(t, err.Error(), "stall on endpoint 1")
}

func TestIsZombie(t *testing.T) {
	require.True(t, IsZombie(ErrZombie))
	require.True(t, IsZombie(Wrap(NODEV, nil, "gone")))
	require.False(t, IsZombie(ErrBusy))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "TIMEOUT", TIMEOUT.String())
	require.Equal(t, "UNKNOWN", Kind(99).String())
}
