package transport

import (
	"context"
	"errors"

	"github.com/google/gousb"
	"github.com/khainav/linux-usbtmc/internal/errs"
)

// ErrNoInterruptEndpoint is returned by InterruptIn when the claimed
// interface has no interrupt-in endpoint
var ErrNoInterruptEndpoint = errs.New(errs.NOTSUP, "interface has no interrupt-in endpoint")

// classify maps an error coming out of gousb into one of usbtmcd's error
// Kinds, classifying gousb errors into the engine's own vocabulary:
// LIBUSB_ERROR_TIMEOUT -> TIMEOUT, LIBUSB_ERROR_NO_DEVICE -> NODEV,
// LIBUSB_ERROR_PIPE -> stall (IO), LIBUSB_ERROR_INTERRUPTED -> INTERRUPTED,
// everything else -> IO.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.TIMEOUT, err, "%s", op)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.INTERRUPTED, err, "%s", op)
	case errors.Is(err, gousb.ErrorNotFound), errors.Is(err, gousb.ErrorNoDevice):
		return errs.Wrap(errs.NODEV, err, "%s", op)
	case errors.Is(err, gousb.ErrorTimeout):
		return errs.Wrap(errs.TIMEOUT, err, "%s", op)
	case errors.Is(err, gousb.ErrorPipe):
		return errs.Wrap(errs.IO, err, "%s: endpoint stalled", op)
	case errors.Is(err, gousb.ErrorInterrupted):
		return errs.Wrap(errs.INTERRUPTED, err, "%s", op)
	case errors.Is(err, gousb.ErrorOverflow):
		return errs.Wrap(errs.IO, err, "%s: transfer overflow", op)
	case errors.Is(err, gousb.ErrorAccess), errors.Is(err, gousb.ErrorBusy):
		return errs.Wrap(errs.PERM, err, "%s", op)
	case errors.Is(err, gousb.ErrorInvalidParam):
		return errs.Wrap(errs.BADARG, err, "%s", op)
	case errors.Is(err, gousb.ErrorNoMem):
		return errs.Wrap(errs.NOMEM, err, "%s", op)
	default:
		return errs.Wrap(errs.IO, err, "%s", op)
	}
}
