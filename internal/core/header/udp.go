package header

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	udpMaxLen      = 0xffff
	udpChecksumOff = 6
)

// UDP is a UDP header: src(2) dst(2) length(2) checksum(2).
// A zero checksum means the checksum is disabled.
type UDP struct {
	srcPort  uint16
	dstPort  uint16
	length   uint16
	checksum uint16

	// network header the checksum pseudo-header is taken from; nil disables checksumming
	pseudo *IPv4
}

// UDPOption configures a UDP header at construction time.
type UDPOption func(*UDP)

// WithPseudoHeader enables checksum computation against ip's addresses.
func WithPseudoHeader(ip *IPv4) UDPOption {
	return func(h *UDP) { h.pseudo = ip }
}

// NewUDP builds a header with length 8 and checksum 0.
func NewUDP(srcPort, dstPort uint16, opts ...UDPOption) *UDP {
	h := &UDP{srcPort: srcPort, dstPort: dstPort, length: UDPLen}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *UDP) SrcPort() uint16  { return h.srcPort }
func (h *UDP) DstPort() uint16  { return h.dstPort }
func (h *UDP) Length() uint16   { return h.length }
func (h *UDP) Checksum() uint16 { return h.checksum }

// Len returns UDPLen.
func (h *UDP) Len() int { return UDPLen }

// Bytes serializes the stored fields; length and checksum are emitted as constructed.
func (h *UDP) Bytes() []byte {
	b := make([]byte, UDPLen)
	h.put(b, h.length, h.checksum)
	return b
}

// Finalize returns a copy whose length covers payload and, if a pseudo-header
// source was configured, whose checksum is valid.
func (h *UDP) Finalize(payload []byte) (*UDP, error) {
	length := UDPLen + len(payload)
	if length > udpMaxLen {
		return nil, fmt.Errorf("udp length %d: %w", length, core.ErrFieldRange)
	}
	out := *h
	out.length = uint16(length)
	out.checksum = 0
	if out.pseudo != nil {
		b := make([]byte, UDPLen)
		out.put(b, out.length, 0)
		out.checksum = out.computeChecksum(b, payload)
	}
	return &out, nil
}

func (h *UDP) put(b []byte, length, checksum uint16) {
	binary.BigEndian.PutUint16(b[0:2], h.srcPort)
	binary.BigEndian.PutUint16(b[2:4], h.dstPort)
	binary.BigEndian.PutUint16(b[4:6], length)
	binary.BigEndian.PutUint16(b[6:8], checksum)
}

// computeChecksum covers the pseudo-header, hdr (checksum zeroed) and payload.
// A computed zero is sent as all ones.
func (h *UDP) computeChecksum(hdr, payload []byte) uint16 {
	length := binary.BigEndian.Uint16(hdr[4:6])
	sum := h.pseudo.pseudoHeaderSum(IPProtocolUDP, length)
	sum = core.Sum(hdr, sum)
	sum = core.Sum(payload, sum)
	csum := ^core.FoldSum(sum)
	if csum == 0 {
		csum = 0xffff
	}
	return csum
}

// SerializeTo prepends the header to b. FixLengths derives the length from the
// payload already in b; ComputeChecksums fills the checksum when a pseudo-header
// source is configured.
func (h *UDP) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	payload := b.Bytes()
	length := h.length
	if opts.FixLengths {
		n := UDPLen + len(payload)
		if n > udpMaxLen {
			return fmt.Errorf("udp length %d: %w", n, core.ErrFieldRange)
		}
		length = uint16(n)
	}

	bytes, err := b.PrependBytes(UDPLen)
	if err != nil {
		return err
	}
	if opts.ComputeChecksums && h.pseudo != nil {
		h.put(bytes, length, 0)
		// payload moved with the prepend; re-slice past the header
		binary.BigEndian.PutUint16(bytes[udpChecksumOff:], h.computeChecksum(bytes[:UDPLen], b.Bytes()[UDPLen:]))
	} else {
		h.put(bytes, length, h.checksum)
	}
	return nil
}

// LayerType implements gopacket.SerializableLayer.
func (h *UDP) LayerType() gopacket.LayerType {
	return layers.LayerTypeUDP
}
