package transport

import "github.com/google/gousb"

// Match describes one matched USBTMC interface setting on a device: the
// configuration/interface/altsetting triple to claim, and the bulk and
// (optionally) interrupt endpoint addresses Open needs.
type Match struct {
	CfgNum, IfNum, AltNum int
	BulkIn, BulkOut       gousb.EndpointAddress
	InterruptIn           gousb.EndpointAddress
	HasInterrupt          bool
	InMaxPacketSize       int // bulk-in wMaxPacketSize, used to size drain reads
	IinMaxPacketSize      int // interrupt-in wMaxPacketSize; the poll loop reads fixed 2-byte notifications instead
	IsUSB488              bool
}

// FindMatch walks desc's configuration/interface/altsetting tree looking
// for the first altsetting advertising the USBTMC class/subclass, and
// resolves its bulk-in/bulk-out/interrupt-in endpoint addresses.
func FindMatch(desc *gousb.DeviceDesc) (Match, bool) {
	for cfgNum, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if !IsUSBTMC(int(alt.Class), int(alt.SubClass), int(alt.Protocol)) {
					continue
				}

				m := Match{
					CfgNum:   cfgNum,
					IfNum:    intf.Number,
					AltNum:   alt.Alternate,
					IsUSB488: IsUSB488(int(alt.Protocol)),
				}

				var haveIn, haveOut bool
				for addr, ep := range alt.Endpoints {
					switch {
					case ep.TransferType == gousb.TransferTypeBulk && ep.Direction == gousb.EndpointDirectionIn:
						m.BulkIn = addr
						m.InMaxPacketSize = ep.MaxPacketSize
						haveIn = true
					case ep.TransferType == gousb.TransferTypeBulk && ep.Direction == gousb.EndpointDirectionOut:
						m.BulkOut = addr
						haveOut = true
					case ep.TransferType == gousb.TransferTypeInterrupt && ep.Direction == gousb.EndpointDirectionIn:
						m.InterruptIn = addr
						m.IinMaxPacketSize = ep.MaxPacketSize
						m.HasInterrupt = true
					}
				}

				if haveIn && haveOut {
					return m, true
				}
			}
		}
	}

	return Match{}, false
}
