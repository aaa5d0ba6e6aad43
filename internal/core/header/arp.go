package header

import (
	"encoding/binary"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ARP is the fixed part of an address-resolution packet:
// htype(2) ptype(2) hlen(1) plen(1) oper(2).
// hlen and plen are always derived from htype and ptype.
type ARP struct {
	htype HardwareType
	ptype ProtocolType
	hlen  uint8
	plen  uint8
	oper  Operation
}

// NewARP builds an ARP header for the given types and operation.
func NewARP(htype HardwareType, ptype ProtocolType, op Operation) (*ARP, error) {
	hlen, ok := htype.AddrLen()
	if !ok {
		return nil, unsupported("hardware type", htype)
	}
	plen, ok := ptype.AddrLen()
	if !ok {
		return nil, unsupported("protocol type", ptype)
	}
	if !op.valid() {
		return nil, unsupported("operation", op)
	}
	return &ARP{htype: htype, ptype: ptype, hlen: hlen, plen: plen, oper: op}, nil
}

// NewARPRequest builds a REQUEST header.
func NewARPRequest(htype HardwareType, ptype ProtocolType) (*ARP, error) {
	return NewARP(htype, ptype, OperationRequest)
}

// NewARPReply builds a REPLY header.
func NewARPReply(htype HardwareType, ptype ProtocolType) (*ARP, error) {
	return NewARP(htype, ptype, OperationReply)
}

func (h *ARP) HardwareType() HardwareType { return h.htype }
func (h *ARP) ProtocolType() ProtocolType { return h.ptype }
func (h *ARP) HardwareLen() uint8         { return h.hlen }
func (h *ARP) ProtocolLen() uint8         { return h.plen }
func (h *ARP) Operation() Operation       { return h.oper }

// Len returns ARPLen.
func (h *ARP) Len() int { return ARPLen }

// Bytes serializes the header.
func (h *ARP) Bytes() []byte {
	b := make([]byte, ARPLen)
	h.put(b)
	return b
}

func (h *ARP) put(b []byte) {
	binary.BigEndian.PutUint16(b[0:2], uint16(h.htype))
	binary.BigEndian.PutUint16(b[2:4], uint16(h.ptype))
	b[4] = h.hlen
	b[5] = h.plen
	binary.BigEndian.PutUint16(b[6:8], uint16(h.oper))
}

// SerializeTo implements gopacket.SerializableLayer.
func (h *ARP) SerializeTo(b gopacket.SerializeBuffer, _ gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(ARPLen)
	if err != nil {
		return err
	}
	h.put(bytes)
	return nil
}

// LayerType implements gopacket.SerializableLayer.
func (h *ARP) LayerType() gopacket.LayerType {
	return layers.LayerTypeARP
}

// ARPPayload is the address body of an Ethernet/IPv4 ARP packet:
// sha(6) spa(4) tha(6) tpa(4), raw octets.
type ARPPayload struct {
	sha core.HardwareAddr
	spa core.ProtocolAddr
	tha core.HardwareAddr
	tpa core.ProtocolAddr
}

// NewARPPayload builds the body from textual addresses.
func NewARPPayload(sha, spa, tha, tpa string) (*ARPPayload, error) {
	shaAddr, err := core.ParseHardwareAddr(sha)
	if err != nil {
		return nil, err
	}
	spaAddr, err := core.ParseProtocolAddr(spa)
	if err != nil {
		return nil, err
	}
	thaAddr, err := core.ParseHardwareAddr(tha)
	if err != nil {
		return nil, err
	}
	tpaAddr, err := core.ParseProtocolAddr(tpa)
	if err != nil {
		return nil, err
	}
	return NewARPPayloadFromAddrs(shaAddr, spaAddr, thaAddr, tpaAddr), nil
}

// NewARPPayloadFromAddrs builds the body from parsed addresses.
func NewARPPayloadFromAddrs(sha core.HardwareAddr, spa core.ProtocolAddr, tha core.HardwareAddr, tpa core.ProtocolAddr) *ARPPayload {
	return &ARPPayload{sha: sha, spa: spa, tha: tha, tpa: tpa}
}

func (p *ARPPayload) SenderHardwareAddr() core.HardwareAddr { return p.sha }
func (p *ARPPayload) SenderProtocolAddr() core.ProtocolAddr { return p.spa }
func (p *ARPPayload) TargetHardwareAddr() core.HardwareAddr { return p.tha }
func (p *ARPPayload) TargetProtocolAddr() core.ProtocolAddr { return p.tpa }

// Len returns ARPPayloadLen.
func (p *ARPPayload) Len() int { return ARPPayloadLen }

// Bytes serializes the body.
func (p *ARPPayload) Bytes() []byte {
	b := make([]byte, ARPPayloadLen)
	p.put(b)
	return b
}

func (p *ARPPayload) put(b []byte) {
	copy(b[0:6], p.sha[:])
	copy(b[6:10], p.spa[:])
	copy(b[10:16], p.tha[:])
	copy(b[16:20], p.tpa[:])
}

// SerializeTo implements gopacket.SerializableLayer.
func (p *ARPPayload) SerializeTo(b gopacket.SerializeBuffer, _ gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(ARPPayloadLen)
	if err != nil {
		return err
	}
	p.put(bytes)
	return nil
}

// LayerType implements gopacket.SerializableLayer.
func (p *ARPPayload) LayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}
