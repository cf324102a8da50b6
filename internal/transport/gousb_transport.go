package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/gousb"
)

// gousbTransport is the production Transport, backed by
// github.com/google/gousb. One instance corresponds to one claimed
// USBTMC interface.
type gousbTransport struct {
	dev   *gousb.Device
	iface *gousb.Interface
	done  func() // releases the claimed interface

	bulkIn   *gousb.InEndpoint
	bulkOut  *gousb.OutEndpoint
	interIn  *gousb.InEndpoint
	hasInter bool

	closeOnce sync.Once
}

// Open claims the given interface/altsetting on the device at addr and
// returns a Transport bound to its bulk-in, bulk-out and (if present)
// interrupt-in endpoints.
//
// bulkInAddr/bulkOutAddr/interInAddr are the endpoint addresses discovered
// from the interface's descriptor by the caller (via FindMatch), since
// the USBTMC class imposes no fixed endpoint numbering.
func Open(ctx *gousb.Context, addr Addr, cfgNum, ifNum, altNum int,
	bulkInAddr, bulkOutAddr gousb.EndpointAddress, interInAddr gousb.EndpointAddress, hasInter bool) (Transport, error) {

	dev, err := OpenDevice(ctx, addr)
	if err != nil {
		return nil, classify("open device", err)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, classify("set auto detach", err)
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		return nil, classify("select configuration", err)
	}

	iface, err := cfg.Interface(ifNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		return nil, classify("claim interface", err)
	}

	bulkIn, err := iface.InEndpoint(int(bulkInAddr))
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		return nil, classify("open bulk-in endpoint", err)
	}

	bulkOut, err := iface.OutEndpoint(int(bulkOutAddr))
	if err != nil {
		iface.Close()
		cfg.Close()
		dev.Close()
		return nil, classify("open bulk-out endpoint", err)
	}

	t := &gousbTransport{
		dev:     dev,
		iface:   iface,
		bulkIn:  bulkIn,
		bulkOut: bulkOut,
		done: func() {
			iface.Close()
			cfg.Close()
		},
	}

	if hasInter {
		interIn, err := iface.InEndpoint(int(interInAddr))
		if err == nil {
			t.interIn = interIn
			t.hasInter = true
		}
	}

	return t, nil
}

func (t *gousbTransport) Control(ctx context.Context, req *ControlRequest) (int, error) {
	var bmRequestType uint8 = req.Type
	if req.Dir == DirIn {
		bmRequestType |= 0x80
	} else {
		bmRequestType &^= 0x80
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	t.dev.ControlTimeout = timeout

	n, err := t.dev.Control(bmRequestType, req.Request, req.Value, req.Index, req.Data)
	if err != nil {
		return n, classify("control transfer", err)
	}

	if req.Dir == DirIn {
		req.Data = req.Data[:n]
	}

	return n, nil
}

func (t *gousbTransport) BulkOut(ctx context.Context, data []byte, timeout time.Duration) (int, error) {
	n, err := transferWithTimeout(ctx, timeout, func() (int, error) {
		return t.bulkOut.Write(data)
	})
	if err != nil {
		return n, classify("bulk out", err)
	}
	return n, nil
}

func (t *gousbTransport) BulkIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	n, err := transferWithTimeout(ctx, timeout, func() (int, error) {
		return t.bulkIn.Read(buf)
	})
	if err != nil {
		return n, classify("bulk in", err)
	}
	return n, nil
}

func (t *gousbTransport) InterruptIn(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	if !t.hasInter {
		return 0, ErrNoInterruptEndpoint
	}

	// The interrupt-in poll loop calls this with a long or zero
	// timeout and relies entirely on ctx cancellation to unblock it on
	// shutdown/disconnect.
	n, err := transferWithTimeout(ctx, timeout, func() (int, error) {
		return t.interIn.Read(buf)
	})
	if err != nil {
		return n, classify("interrupt in", err)
	}
	return n, nil
}

func (t *gousbTransport) HasInterruptIn() bool {
	return t.hasInter
}

func (t *gousbTransport) ClearHalt(ctx context.Context, ep Endpoint) error {
	const (
		reqClearFeature     = 0x01
		featureEndpointHalt = 0x00
	)

	req := &ControlRequest{
		Dir:     DirOut,
		Type:    0x02, // standard request, recipient = endpoint
		Request: reqClearFeature,
		Value:   featureEndpointHalt,
		Index:   uint16(ep),
		Timeout: time.Second,
	}

	_, err := t.Control(ctx, req)
	return err
}

func (t *gousbTransport) Reset(ctx context.Context) error {
	err := t.dev.Reset()
	if err != nil {
		return classify("reset", err)
	}
	return nil
}

func (t *gousbTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.done != nil {
			t.done()
		}
		err = t.dev.Close()
	})
	return err
}

// transferWithTimeout runs fn and bounds it by both timeout and ctx. gousb
// endpoint Read/Write already honor the endpoint's own configured
// ReadTimeout/WriteTimeout; this additionally respects a caller-supplied
// context so the engine's cancellation (an in-flight ABORT_BULK_*) can
// unblock a caller waiting on the result, folding context cancellation into
// the same completion path as a genuine transfer error.
func transferWithTimeout(ctx context.Context, timeout time.Duration, fn func() (int, error)) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		n   int
		err error
	}

	ch := make(chan result, 1)
	go func() {
		n, err := fn()
		ch <- result{n, err}
	}()

	select {
	case r := <-ch:
		return r.n, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

var _ Transport = (*gousbTransport)(nil)
