package transport

import (
	"fmt"
	"sort"

	"github.com/google/gousb"
)

// Addr identifies a USB device on the bus, independent of its vendor and
// product.
type Addr struct {
	Bus     int
	Address int
}

func (addr Addr) String() string {
	return fmt.Sprintf("Bus %.3d Device %.3d", addr.Bus, addr.Address)
}

func (addr Addr) Less(addr2 Addr) bool {
	return addr.Bus < addr2.Bus ||
		(addr.Bus == addr2.Bus && addr.Address < addr2.Address)
}

// AddrList is a sorted, deduplicated list of Addr. Callers must use Add
// rather than append directly, to preserve the sort invariant.
type AddrList []Addr

// Add inserts addr into the list, keeping it sorted, ignoring duplicates
func (list *AddrList) Add(addr Addr) {
	i := sort.Search(len(*list), func(n int) bool {
		return !(*list)[n].Less(addr)
	})

	if i < len(*list) && (*list)[i] == addr {
		return
	}

	if i == len(*list) {
		*list = append(*list, addr)
		return
	}

	*list = append(*list, Addr{})
	copy((*list)[i+1:], (*list)[i:])
	(*list)[i] = addr
}

// Find returns the index of addr in the list, or -1
func (list AddrList) Find(addr Addr) int {
	i := sort.Search(len(list), func(n int) bool {
		return !list[n].Less(addr)
	})

	if i < len(list) && list[i] == addr {
		return i
	}

	return -1
}

// Diff computes which addresses were added and removed going from list to
// list2, used by the PnP loop to react to devices appearing and
// disappearing between two bus scans.
func (list AddrList) Diff(list2 AddrList) (added, removed AddrList) {
	for _, a := range list2 {
		if list.Find(a) < 0 {
			added.Add(a)
		}
	}

	for _, a := range list {
		if list2.Find(a) < 0 {
			removed.Add(a)
		}
	}

	return
}

// usbtmcClass/usbtmcSubclass are the USB Application-Specific class
// values a USBTMC interface advertises (subclass 3, protocol 0 for
// plain USBTMC, protocol 1 for the USB488 subclass).
const (
	usbtmcClass    = 0xFE
	usbtmcSubclass = 0x03
)

// IsUSBTMC reports whether an interface setting matches the USBTMC class,
// optionally the USB488 subclass (protocol 1)
func IsUSBTMC(class, subclass, protocol int) bool {
	if class != usbtmcClass || subclass != usbtmcSubclass {
		return false
	}
	return protocol == 0 || protocol == 1
}

// IsUSB488 reports whether a matched USBTMC interface additionally
// implements the USB488 subclass (protocol 1)
func IsUSB488(protocol int) bool {
	return protocol == 1
}

// Scan enumerates all USB devices visible to ctx and returns the address
// of every one exposing at least one USBTMC interface.
func Scan(ctx *gousb.Context) (AddrList, error) {
	var list AddrList

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, cfg := range desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					if IsUSBTMC(int(alt.Class), int(alt.SubClass), int(alt.Protocol)) {
						return true
					}
				}
			}
		}
		return false
	})

	for _, dev := range devs {
		list.Add(Addr{Bus: dev.Desc.Bus, Address: dev.Desc.Address})
		dev.Close()
	}

	return list, err
}

// OpenDevice opens the raw *gousb.Device at addr, without claiming any
// interface
func OpenDevice(ctx *gousb.Context, addr Addr) (*gousb.Device, error) {
	found := false
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if found {
			return false
		}
		if desc.Bus == addr.Bus && desc.Address == addr.Address {
			found = true
			return true
		}
		return false
	})

	if len(devs) != 0 {
		return devs[0], nil
	}

	if err == nil {
		err = gousb.ErrorNotFound
	}

	return nil, fmt.Errorf("%s: %s", addr, err)
}
