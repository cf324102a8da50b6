// Device discovery and lifecycle: the PnP manager loop.
package main

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"

	"github.com/khainav/linux-usbtmc/internal/config"
	"github.com/khainav/linux-usbtmc/internal/logger"
	"github.com/khainav/linux-usbtmc/internal/transport"
	"github.com/khainav/linux-usbtmc/internal/usbtmc"
)

// managedDevice bundles a probed Device with the bookkeeping the PnP loop
// and the status command need but the engine itself doesn't care about.
type managedDevice struct {
	addr     transport.Addr
	dev      *usbtmc.Device
	desc     gousb.DeviceDesc
	log      *logger.Logger
	probeErr error
}

// deviceManager owns the set of currently-probed devices, keyed by bus
// address, and on each poll of the bus diffs the matched address set and
// probes/tears down accordingly. Its mutex guards byAddr/known against
// the concurrent status-socket reader.
type deviceManager struct {
	usbCtx *gousb.Context
	log    *logger.Logger

	mu     sync.RWMutex
	known  transport.AddrList
	byAddr map[transport.Addr]*managedDevice

	// retry holds the next-attempt deadline for an address whose
	// interface claim failed (a failed capability probe still registers
	// the device and is not retried), one bounded exponential
	// backoff per address so a device that bounces repeatedly during
	// enumeration doesn't get hammered with probe attempts.
	retry map[transport.Addr]*retryState
}

type retryState struct {
	backoff backoff.BackOff
	at      time.Time
}

func newDeviceManager(usbCtx *gousb.Context, log *logger.Logger) *deviceManager {
	return &deviceManager{
		usbCtx: usbCtx,
		log:    log,
		byAddr: make(map[transport.Addr]*managedDevice),
		retry:  make(map[transport.Addr]*retryState),
	}
}

func newRetryState() *retryState {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return &retryState{backoff: b}
}

// Poll rescans the bus once, probing newly matched devices and tearing
// down ones that vanished.
func (m *deviceManager) Poll(ctx context.Context) {
	addrs, err := transport.Scan(m.usbCtx)
	if err != nil {
		m.log.Error('!', "usb scan: %s", err)
	}

	m.mu.Lock()
	added, removed := m.known.Diff(addrs)
	m.known = addrs
	m.mu.Unlock()

	for _, addr := range removed {
		m.teardown(addr)
	}

	for _, addr := range added {
		m.probe(ctx, addr)
	}

	m.retryDue(ctx)
}

// retryDue re-probes any still-present address whose last probe failed
// and whose backoff interval has elapsed.
func (m *deviceManager) retryDue(ctx context.Context) {
	now := time.Now()

	m.mu.RLock()
	var due []transport.Addr
	for addr, rs := range m.retry {
		if m.known.Find(addr) >= 0 && !now.Before(rs.at) {
			due = append(due, addr)
		}
	}
	m.mu.RUnlock()

	for _, addr := range due {
		m.log.Debug(' ', "%s: retrying after earlier probe failure", addr)
		m.probe(ctx, addr)
	}
}

// probe opens addr, claims its matched USBTMC interface, runs the
// capability probe, and registers it. Failures are logged and are not
// fatal to the rest of the daemon: a failed claim is retried once its
// per-address backoff has elapsed, while a failure to open the device
// itself schedules no retry.
func (m *deviceManager) probe(ctx context.Context, addr transport.Addr) {
	raw, err := transport.OpenDevice(m.usbCtx, addr)
	if err != nil {
		m.log.Error('!', "%s: %s", addr, err)
		return
	}
	desc := *raw.Desc
	raw.Close()

	match, ok := transport.FindMatch(&desc)
	if !ok {
		return
	}

	t, err := transport.Open(m.usbCtx, addr, match.CfgNum, match.IfNum, match.AltNum,
		match.BulkIn, match.BulkOut, match.InterruptIn, match.HasInterrupt)
	if err != nil {
		m.log.Error('!', "%s: %s", addr, err)
		m.register(&managedDevice{addr: addr, desc: desc, probeErr: err})
		m.scheduleRetry(addr)
		return
	}

	ident := identOf(desc)
	devLog := logger.New()
	if Conf.LogDevice != 0 {
		devLog.ToDevFile(config.PathLogDir, ident)
	} else {
		devLog.ToNowhere()
	}
	devLog.SetLevels(Conf.LogDevice)
	devLog.Cc(logger.Error, m.log)

	dev := usbtmc.NewDevice(t, transport.Endpoint(match.BulkIn), transport.Endpoint(match.BulkOut),
		transport.Endpoint(match.InterruptIn), match.HasInterrupt, match.InMaxPacketSize, devLog)

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	capErr := usbtmc.ProbeCapabilities(probeCtx, dev)
	cancel()
	if capErr != nil {
		// A device that can't answer GET_CAPABILITIES may still serve
		// plain reads/writes, so registration proceeds regardless.
		m.log.Error('!', "%s: GET_CAPABILITIES: %s", addr, capErr)
	}

	if match.HasInterrupt {
		dev.StartInterruptPoll()
	}

	m.register(&managedDevice{addr: addr, dev: dev, desc: desc, log: devLog, probeErr: capErr})
	m.clearRetry(addr)
	m.log.Info('+', "%s: probed (%s)", addr, ident)
}

func (m *deviceManager) register(md *managedDevice) {
	m.mu.Lock()
	m.byAddr[md.addr] = md
	m.mu.Unlock()
}

func (m *deviceManager) scheduleRetry(addr transport.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.retry[addr]
	if !ok {
		rs = newRetryState()
		m.retry[addr] = rs
	}
	rs.at = time.Now().Add(rs.backoff.NextBackOff())
}

func (m *deviceManager) clearRetry(addr transport.Addr) {
	m.mu.Lock()
	delete(m.retry, addr)
	m.mu.Unlock()
}

// teardown runs the disconnect procedure for a device that vanished from
// the bus. The Device record itself survives until its last open handle
// releases it; only the manager's own bookkeeping is dropped immediately.
func (m *deviceManager) teardown(addr transport.Addr) {
	m.mu.Lock()
	md, ok := m.byAddr[addr]
	delete(m.byAddr, addr)
	delete(m.retry, addr)
	m.mu.Unlock()

	if !ok {
		return
	}
	if md.dev != nil {
		md.dev.Disconnect()
	}
	m.log.Info('-', "%s: disconnected", addr)
}

// Empty reports whether no device is currently tracked, used by the
// "udev" run mode to decide whether to exit.
func (m *deviceManager) Empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAddr) == 0
}

// StatusText formats a human-readable status report: one block per
// currently-tracked device, listing its address, identity, zombie flag,
// open-handle count and capability bits.
func (m *deviceManager) StatusText() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "usbtmcd %s: running\n", Version)

	list := make([]*managedDevice, 0, len(m.byAddr))
	for _, md := range m.byAddr {
		list = append(list, md)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].addr.Less(list[j].addr) })

	fmt.Fprintf(buf, "usbtmc devices:")
	if len(list) == 0 {
		buf.WriteString(" none\n")
		return buf.Bytes()
	}
	buf.WriteString("\n")

	for _, md := range list {
		fmt.Fprintf(buf, " %s  %04x:%04x\n",
			md.addr, uint16(md.desc.Vendor), uint16(md.desc.Product))

		if md.probeErr != nil {
			fmt.Fprintf(buf, "      status: %s\n", md.probeErr)
			continue
		}
		if md.dev == nil {
			fmt.Fprintf(buf, "      status: not probed\n")
			continue
		}

		status := "OK"
		if md.dev.IsZombie() {
			status = "disconnected (awaiting last close)"
		}
		fmt.Fprintf(buf, "      status: %s, handles: %d, capabilities: %+v\n",
			status, md.dev.HandleCount(), md.dev.Capabilities())
	}

	return buf.Bytes()
}

func identOf(desc gousb.DeviceDesc) string {
	return fmt.Sprintf("%s_%04x_%04x", transport.Addr{Bus: desc.Bus, Address: desc.Address},
		uint16(desc.Vendor), uint16(desc.Product))
}
