// Package frame concatenates serialized layers into wire frames.
package frame

import (
	"encoding/hex"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Frame is a fully composed, ready-to-transmit byte sequence.
type Frame []byte

// Compose concatenates parts in order. Nothing is added, removed or checked.
func Compose(parts ...[]byte) Frame {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	f := make(Frame, 0, n)
	for _, p := range parts {
		f = append(f, p...)
	}
	return f
}

// ComposeWithPayload is Compose with a trailing payload.
func ComposeWithPayload(payload []byte, parts ...[]byte) Frame {
	return Compose(append(parts[:len(parts):len(parts)], payload)...)
}

// Len returns the frame length in bytes.
func (f Frame) Len() int {
	return len(f)
}

// Hex returns the frame as a lowercase hex string.
func (f Frame) Hex() string {
	return hex.EncodeToString(f)
}

// Options controls the finalize step of Build.
type Options struct {
	// FixLengths derives IPv4 total length and UDP length from the bytes that
	// follow each header, and pads Ethernet frames to the 60-byte minimum.
	FixLengths bool
	// ComputeChecksums fills IPv4 header and UDP checksums.
	ComputeChecksums bool
}

// Build serializes layers back to front so every header sees the bytes that
// follow it before writing itself. With zero Options the result equals Compose
// over each layer's Bytes.
func Build(opts Options, stack ...gopacket.SerializableLayer) (Frame, error) {
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{
		FixLengths:       opts.FixLengths,
		ComputeChecksums: opts.ComputeChecksums,
	}, stack...)
	if err != nil {
		return nil, err
	}
	return Frame(buf.Bytes()), nil
}

// Describe decodes the frame with gopacket and returns a human-readable layer dump.
// first selects the outermost layer: Ethernet for link frames, IPv4 for L3 frames.
func Describe(f Frame, first gopacket.LayerType) string {
	if first == 0 {
		first = layers.LayerTypeEthernet
	}
	return gopacket.NewPacket(f, first, gopacket.Default).Dump()
}
