package header

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	ipv4Version = 4
	ipv4IHL     = 5 // 32-bit words, no options

	ipv4DefaultTTL = 64
	ipv4DefaultID  = 1

	ipv4MaxTotalLen = 0xffff
	ipv4ChecksumOff = 10
)

// IPv4 is an option-less IPv4 header.
//
//	ver_ihl(1) dscp_ecn(1) total_len(2) id(2) flags_frag(2) ttl(1) proto(1) checksum(2) src(4) dst(4)
type IPv4 struct {
	dscp       uint8 // 6 bits
	ecn        uint8 // 2 bits
	totalLen   uint16
	id         uint16
	flags      uint8  // 3 bits
	fragOffset uint16 // 13 bits
	ttl        uint8
	protocol   IPProtocol
	checksum   uint16
	src        core.ProtocolAddr
	dst        core.ProtocolAddr
}

// IPv4Option overrides a default at construction time.
type IPv4Option func(*IPv4)

// WithTTL sets the time-to-live.
func WithTTL(ttl uint8) IPv4Option {
	return func(h *IPv4) { h.ttl = ttl }
}

// WithID sets the identification field.
func WithID(id uint16) IPv4Option {
	return func(h *IPv4) { h.id = id }
}

// WithTOS sets DSCP (6 bits) and ECN (2 bits).
func WithTOS(dscp, ecn uint8) IPv4Option {
	return func(h *IPv4) {
		h.dscp = dscp
		h.ecn = ecn
	}
}

// WithFlags sets the flags (3 bits, 0x2 = DF, 0x1 = MF) and fragment offset (13 bits).
func WithFlags(flags uint8, fragOffset uint16) IPv4Option {
	return func(h *IPv4) {
		h.flags = flags
		h.fragOffset = fragOffset
	}
}

// NewIPv4 builds a header with version 4, IHL 5, total length 20, id 1, TTL 64
// and a zero checksum unless overridden.
func NewIPv4(src, dst core.ProtocolAddr, protocol IPProtocol, opts ...IPv4Option) (*IPv4, error) {
	if !protocol.valid() {
		return nil, unsupported("ip protocol", protocol)
	}
	h := &IPv4{
		totalLen: IPv4Len,
		id:       ipv4DefaultID,
		ttl:      ipv4DefaultTTL,
		protocol: protocol,
		src:      src,
		dst:      dst,
	}
	for _, opt := range opts {
		opt(h)
	}

	switch {
	case h.dscp > 0x3f:
		return nil, fmt.Errorf("dscp %d exceeds 6 bits: %w", h.dscp, core.ErrFieldRange)
	case h.ecn > 0x03:
		return nil, fmt.Errorf("ecn %d exceeds 2 bits: %w", h.ecn, core.ErrFieldRange)
	case h.flags > 0x07:
		return nil, fmt.Errorf("flags %d exceed 3 bits: %w", h.flags, core.ErrFieldRange)
	case h.fragOffset > 0x1fff:
		return nil, fmt.Errorf("fragment offset %d exceeds 13 bits: %w", h.fragOffset, core.ErrFieldRange)
	}
	return h, nil
}

// NewIPv4FromStrings parses dotted-decimal addresses and calls NewIPv4.
func NewIPv4FromStrings(src, dst string, protocol IPProtocol, opts ...IPv4Option) (*IPv4, error) {
	s, err := core.ParseProtocolAddr(src)
	if err != nil {
		return nil, err
	}
	d, err := core.ParseProtocolAddr(dst)
	if err != nil {
		return nil, err
	}
	return NewIPv4(s, d, protocol, opts...)
}

func (h *IPv4) Version() uint8         { return ipv4Version }
func (h *IPv4) IHL() uint8             { return ipv4IHL }
func (h *IPv4) DSCP() uint8            { return h.dscp }
func (h *IPv4) ECN() uint8             { return h.ecn }
func (h *IPv4) TotalLen() uint16       { return h.totalLen }
func (h *IPv4) ID() uint16             { return h.id }
func (h *IPv4) Flags() uint8           { return h.flags }
func (h *IPv4) FragOffset() uint16     { return h.fragOffset }
func (h *IPv4) TTL() uint8             { return h.ttl }
func (h *IPv4) Protocol() IPProtocol   { return h.protocol }
func (h *IPv4) Checksum() uint16       { return h.checksum }
func (h *IPv4) Src() core.ProtocolAddr { return h.src }
func (h *IPv4) Dst() core.ProtocolAddr { return h.dst }

// Len returns IPv4Len.
func (h *IPv4) Len() int { return IPv4Len }

// Bytes serializes the stored fields. The checksum and total length are emitted
// as constructed; use Finalize or frame.Build to derive them.
func (h *IPv4) Bytes() []byte {
	b := make([]byte, IPv4Len)
	h.put(b, h.totalLen, h.checksum)
	return b
}

// Finalize returns a copy whose total length covers payloadLen bytes and whose
// checksum is valid for the resulting header.
func (h *IPv4) Finalize(payloadLen int) (*IPv4, error) {
	total := IPv4Len + payloadLen
	if payloadLen < 0 || total > ipv4MaxTotalLen {
		return nil, fmt.Errorf("ipv4 total length %d: %w", total, core.ErrFieldRange)
	}
	out := *h
	out.totalLen = uint16(total)
	out.checksum = 0

	b := make([]byte, IPv4Len)
	out.put(b, out.totalLen, 0)
	out.checksum = core.Checksum(b)
	return &out, nil
}

func (h *IPv4) put(b []byte, totalLen, checksum uint16) {
	b[0] = ipv4Version<<4 | ipv4IHL
	b[1] = h.dscp<<2 | h.ecn&0x03
	binary.BigEndian.PutUint16(b[2:4], totalLen)
	binary.BigEndian.PutUint16(b[4:6], h.id)
	binary.BigEndian.PutUint16(b[6:8], uint16(h.flags&0x07)<<13|h.fragOffset&0x1fff)
	b[8] = h.ttl
	b[9] = uint8(h.protocol)
	binary.BigEndian.PutUint16(b[10:12], checksum)
	copy(b[12:16], h.src[:])
	copy(b[16:20], h.dst[:])
}

// SerializeTo prepends the header to b. FixLengths derives the total length from
// the bytes already in b; ComputeChecksums fills the header checksum.
func (h *IPv4) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	totalLen := h.totalLen
	if opts.FixLengths {
		total := IPv4Len + len(b.Bytes())
		if total > ipv4MaxTotalLen {
			return fmt.Errorf("ipv4 total length %d: %w", total, core.ErrFieldRange)
		}
		totalLen = uint16(total)
	}

	bytes, err := b.PrependBytes(IPv4Len)
	if err != nil {
		return err
	}
	if opts.ComputeChecksums {
		h.put(bytes, totalLen, 0)
		binary.BigEndian.PutUint16(bytes[ipv4ChecksumOff:], core.Checksum(bytes[:IPv4Len]))
	} else {
		h.put(bytes, totalLen, h.checksum)
	}
	return nil
}

// LayerType implements gopacket.SerializableLayer.
func (h *IPv4) LayerType() gopacket.LayerType {
	return layers.LayerTypeIPv4
}

// pseudoHeaderSum returns the partial sum of the IPv4 pseudo-header used by
// transport checksums.
func (h *IPv4) pseudoHeaderSum(protocol IPProtocol, length uint16) uint32 {
	sum := core.Sum(h.src[:], 0)
	sum = core.Sum(h.dst[:], sum)
	sum += uint32(protocol)
	sum += uint32(length)
	return sum
}
