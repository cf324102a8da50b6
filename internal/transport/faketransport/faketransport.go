// Package faketransport implements an in-memory transport.Transport for
// testing the USBTMC engine without real hardware.
package faketransport

import (
	"context"
	"sync"
	"time"

	"github.com/khainav/linux-usbtmc/internal/errs"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// ControlHandler answers a single control transfer
type ControlHandler func(req *transport.ControlRequest) (int, error)

// Fake is a scriptable transport.Transport: tests enqueue responses onto
// its channels/handler before exercising the engine.
type Fake struct {
	mu sync.Mutex

	// ControlHandler, if set, answers every Control call. Tests that only
	// care about bulk framing can leave it nil and get errs.NOTSUP.
	ControlHandler ControlHandler

	// BulkOutFrames records every payload written to the bulk-out
	// endpoint, for assertions.
	BulkOutFrames [][]byte
	bulkOutErr    error

	// BulkInFrames is consumed FIFO by BulkIn; each call pops the front
	// element and copies it into the caller's buffer.
	BulkInFrames [][]byte
	bulkInErr    error

	// interruptCh is consumed FIFO by InterruptIn. A read with no
	// frame queued blocks until one is pushed or ctx is canceled,
	// mirroring the real interrupt-in endpoint's behavior.
	interruptCh chan []byte

	hasInterrupt bool
	closed       bool
	resetCount   int
	clearedHalts []transport.Endpoint
}

// New creates a Fake transport. hasInterrupt controls HasInterruptIn.
func New(hasInterrupt bool) *Fake {
	return &Fake{
		interruptCh:  make(chan []byte, 16),
		hasInterrupt: hasInterrupt,
	}
}

// PushInterrupt enqueues a frame to be returned by the next InterruptIn call
func (f *Fake) PushInterrupt(frame []byte) {
	f.interruptCh <- frame
}

// PushBulkIn enqueues a frame to be returned by the next BulkIn call
func (f *Fake) PushBulkIn(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BulkInFrames = append(f.BulkInFrames, frame)
}

// SetBulkInErr makes every subsequent BulkIn call fail with err
func (f *Fake) SetBulkInErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkInErr = err
}

// SetBulkOutErr makes every subsequent BulkOut call fail with err
func (f *Fake) SetBulkOutErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkOutErr = err
}

// ClearedHalts returns the endpoints ClearHalt was called on, in order
func (f *Fake) ClearedHalts() []transport.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Endpoint(nil), f.clearedHalts...)
}

// ResetCount returns how many times Reset was called
func (f *Fake) ResetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCount
}

// Closed reports whether Close was called
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Control(ctx context.Context, req *transport.ControlRequest) (int, error) {
	if f.ControlHandler == nil {
		return 0, errs.New(errs.NOTSUP, "faketransport: no ControlHandler installed")
	}
	return f.ControlHandler(req)
}

func (f *Fake) BulkOut(ctx context.Context, data []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bulkOutErr != nil {
		return 0, f.bulkOutErr
	}

	cp := append([]byte(nil), data...)
	f.BulkOutFrames = append(f.BulkOutFrames, cp)
	return len(data), nil
}

func (f *Fake) BulkIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	if f.bulkInErr != nil {
		err := f.bulkInErr
		f.mu.Unlock()
		return 0, err
	}

	if len(f.BulkInFrames) == 0 {
		f.mu.Unlock()
		return 0, errs.New(errs.TIMEOUT, "faketransport: no bulk-in frame queued")
	}

	frame := f.BulkInFrames[0]
	f.BulkInFrames = f.BulkInFrames[1:]
	f.mu.Unlock()

	n := copy(buf, frame)
	return n, nil
}

func (f *Fake) InterruptIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if !f.hasInterrupt {
		return 0, transport.ErrNoInterruptEndpoint
	}

	select {
	case frame := <-f.interruptCh:
		return copy(buf, frame), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *Fake) HasInterruptIn() bool {
	return f.hasInterrupt
}

func (f *Fake) ClearHalt(ctx context.Context, ep transport.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedHalts = append(f.clearedHalts, ep)
	return nil
}

func (f *Fake) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCount++
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ transport.Transport = (*Fake)(nil)
