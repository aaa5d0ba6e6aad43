package header

import (
	"encoding/binary"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Ethernet is an Ethernet II link header: dst(6) src(6) type(2).
type Ethernet struct {
	dst       core.HardwareAddr
	src       core.HardwareAddr
	etherType EtherType
}

// NewEthernet builds a link header from textual MAC addresses.
func NewEthernet(dst, src string, etherType EtherType) (*Ethernet, error) {
	d, err := core.ParseHardwareAddr(dst)
	if err != nil {
		return nil, err
	}
	s, err := core.ParseHardwareAddr(src)
	if err != nil {
		return nil, err
	}
	return NewEthernetFromAddrs(d, s, etherType)
}

// NewEthernetFromAddrs builds a link header from parsed addresses.
func NewEthernetFromAddrs(dst, src core.HardwareAddr, etherType EtherType) (*Ethernet, error) {
	if !etherType.valid() {
		return nil, unsupported("ethertype", etherType)
	}
	return &Ethernet{dst: dst, src: src, etherType: etherType}, nil
}

func (h *Ethernet) Dst() core.HardwareAddr { return h.dst }
func (h *Ethernet) Src() core.HardwareAddr { return h.src }
func (h *Ethernet) EtherType() EtherType   { return h.etherType }

// Len returns EthernetLen.
func (h *Ethernet) Len() int { return EthernetLen }

// Bytes serializes the header.
func (h *Ethernet) Bytes() []byte {
	b := make([]byte, EthernetLen)
	h.put(b)
	return b
}

func (h *Ethernet) put(b []byte) {
	copy(b[0:6], h.dst[:])
	copy(b[6:12], h.src[:])
	binary.BigEndian.PutUint16(b[12:14], uint16(h.etherType))
}

// SerializeTo prepends the header to b. With FixLengths the frame is zero-padded
// to the 60-byte Ethernet minimum.
func (h *Ethernet) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if opts.FixLengths {
		if short := EthernetMinFrameLen - EthernetLen - len(b.Bytes()); short > 0 {
			pad, err := b.AppendBytes(short)
			if err != nil {
				return err
			}
			clear(pad)
		}
	}
	bytes, err := b.PrependBytes(EthernetLen)
	if err != nil {
		return err
	}
	h.put(bytes)
	return nil
}

// LayerType implements gopacket.SerializableLayer.
func (h *Ethernet) LayerType() gopacket.LayerType {
	return layers.LayerTypeEthernet
}
