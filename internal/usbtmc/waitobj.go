package usbtmc

import (
	"context"
	"sync"
)

// waitObject is a broadcast-once-then-reset wait primitive, used for STB
// arrival, SRQ arrival, and zombie notification: a wakeup becomes
// Broadcast, and a blocked reader becomes a goroutine selecting on Wait's
// channel.
type waitObject struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWaitObject() *waitObject {
	return &waitObject{ch: make(chan struct{})}
}

// Wait blocks until the next Broadcast, ctx is canceled, or ctx's deadline
// passes.
func (w *waitObject) Wait(ctx context.Context) error {
	w.mu.Lock()
	ch := w.ch
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast wakes every goroutine currently blocked in Wait
func (w *waitObject) Broadcast() {
	w.mu.Lock()
	close(w.ch)
	w.ch = make(chan struct{})
	w.mu.Unlock()
}
