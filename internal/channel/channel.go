// Package channel transmits composed frames through kernel endpoints.
//
// Every backend owns exactly one OS resource. Close is idempotent and Send after
// Close fails with a *core.TransmissionError wrapping core.ErrChannelClosed.
package channel

import (
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"firestige.xyz/rawframe/internal/core"
)

// Channel sends whole frames. Implementations are safe for use by one sender at a
// time; Close may be called concurrently with Send.
type Channel interface {
	// Send writes frame and returns the number of bytes written. A short write
	// is reported as an error, never resumed.
	Send(frame []byte) (int, error)
	// Close releases the underlying handle. Calling it again is a no-op.
	Close() error
}

// Backend names a Channel implementation.
type Backend string

const (
	BackendSocket   Backend = "socket"   // AF_PACKET socket
	BackendAFPacket Backend = "afpacket" // AF_PACKET TPACKET_V3 ring
	BackendTUN      Backend = "tun"      // TUN device, L3 frames
	BackendPCAP     Backend = "pcap"     // pcap file, nothing hits the wire
)

// SupportedBackends lists the backends New accepts.
func SupportedBackends() []Backend {
	return []Backend{BackendSocket, BackendAFPacket, BackendTUN, BackendPCAP}
}

// IsBackendSupported reports whether b is one of SupportedBackends.
func IsBackendSupported(b Backend) bool {
	for _, s := range SupportedBackends() {
		if s == b {
			return true
		}
	}
	return false
}

// Domain is the socket communication domain.
type Domain int

const (
	DomainPacket Domain = iota + 1
)

func (d Domain) String() string {
	if d == DomainPacket {
		return "packet"
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

// Type is the socket type.
type Type int

const (
	// TypeRaw sends frames that include their link header.
	TypeRaw Type = iota + 1
	// TypeDatagram lets the kernel build the link header; frames start at L3.
	TypeDatagram
)

func (t Type) String() string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeDatagram:
		return "dgram"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType accepts "raw" or "dgram".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "raw":
		return TypeRaw, nil
	case "dgram", "datagram":
		return TypeDatagram, nil
	}
	return 0, fmt.Errorf("socket type %q: %w", s, core.ErrUnsupportedSelector)
}

// Protocol is the link-layer protocol (ETH_P_*) the socket is opened for, in host order.
type Protocol uint16

const (
	ProtocolEtherAll Protocol = 0x0003
	ProtocolIPv4     Protocol = 0x0800
	ProtocolARP      Protocol = 0x0806
)

func (p Protocol) String() string {
	switch p {
	case ProtocolEtherAll:
		return "all"
	case ProtocolIPv4:
		return "ipv4"
	case ProtocolARP:
		return "arp"
	}
	return fmt.Sprintf("protocol(0x%04x)", uint16(p))
}

// ParseProtocol accepts "all", "arp" or "ipv4".
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "all", "ether":
		return ProtocolEtherAll, nil
	case "arp":
		return ProtocolARP, nil
	case "ipv4", "ip":
		return ProtocolIPv4, nil
	}
	return 0, fmt.Errorf("socket protocol %q: %w", s, core.ErrUnsupportedSelector)
}

// htons converts a 16-bit value from host to network byte order.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// Config carries the settings of every backend; each backend reads its own part.
type Config struct {
	Interface    string            // interface to bind/transmit on
	Type         Type              // socket backend
	Protocol     Protocol          // socket backend
	Peer         core.HardwareAddr // link destination for TypeDatagram; broadcast when zero
	DropIncoming bool              // socket backend: discard everything the kernel would queue for reading

	AFPacket  AFPacketConfig
	TUN       TUNConfig
	PCAP      PCAPConfig
	RateLimit RateLimitConfig
}

// AFPacketConfig sizes the TPACKET_V3 ring. Zero values keep the library defaults.
type AFPacketConfig struct {
	FrameSize int
	BlockSize int
	NumBlocks int
}

// TUNConfig names the TUN device; empty lets the kernel pick one.
type TUNConfig struct {
	Name    string
	Persist bool
}

// PCAPConfig selects the capture file written by the pcap backend.
type PCAPConfig struct {
	Path     string
	SnapLen  int
	LinkType string // "ethernet" or "raw"
}

// CarriesLinkHeader reports whether frames sent through the channel start with
// an Ethernet header. TUN devices, datagram sockets and raw pcap files take L3 frames.
func CarriesLinkHeader(backend Backend, cfg Config) bool {
	switch backend {
	case BackendTUN:
		return false
	case BackendSocket:
		return cfg.Type != TypeDatagram
	case BackendPCAP:
		lt, err := pcapLinkType(cfg.PCAP.LinkType)
		return err != nil || lt == layers.LinkTypeEthernet
	}
	return true
}

// New opens a channel of the given backend.
func New(backend Backend, cfg Config) (Channel, error) {
	switch backend {
	case BackendSocket:
		if cfg.Type == 0 {
			cfg.Type = TypeRaw
		}
		if cfg.Protocol == 0 {
			cfg.Protocol = ProtocolEtherAll
		}
		// an unbound packet socket has ifindex 0 and the kernel refuses every send
		if cfg.Interface == "" {
			return nil, &core.ChannelOpenError{
				Backend:  string(backend),
				Domain:   DomainPacket.String(),
				Type:     cfg.Type.String(),
				Protocol: cfg.Protocol.String(),
				Err:      fmt.Errorf("interface is required: %w", core.ErrConfigInvalid),
			}
		}
		opts := []Option{WithPeer(cfg.Peer), WithInterface(cfg.Interface)}
		if cfg.DropIncoming {
			opts = append(opts, WithDropIncoming())
		}
		ch, err := Open(DomainPacket, cfg.Type, cfg.Protocol, opts...)
		if err != nil {
			return nil, err
		}
		return ch, nil
	case BackendAFPacket:
		return openRing(cfg)
	case BackendTUN:
		return openTUN(cfg)
	case BackendPCAP:
		return openPCAP(cfg.PCAP)
	default:
		return nil, &core.ChannelOpenError{
			Backend: string(backend),
			Err:     fmt.Errorf("%w: %q (supported: %v)", core.ErrUnknownBackend, backend, SupportedBackends()),
		}
	}
}

// Option configures a RawChannel at Open.
type Option func(*rawOptions)

type rawOptions struct {
	iface        string
	peer         core.HardwareAddr
	dropIncoming bool
}

// WithInterface binds the channel to the named interface.
func WithInterface(name string) Option {
	return func(o *rawOptions) { o.iface = name }
}

// WithPeer sets the link destination used by TypeDatagram channels.
func WithPeer(addr core.HardwareAddr) Option {
	return func(o *rawOptions) { o.peer = addr }
}

// WithDropIncoming attaches a filter that rejects every received frame, so a
// send-only socket never accumulates a receive queue.
func WithDropIncoming() Option {
	return func(o *rawOptions) { o.dropIncoming = true }
}

func closedError(backend string, n int) error {
	return &core.TransmissionError{Backend: backend, Len: n, Err: core.ErrChannelClosed}
}

func shortWriteError(backend string, wrote, n int) error {
	return &core.TransmissionError{
		Backend: backend,
		Len:     n,
		Err:     fmt.Errorf("%w: wrote %d of %d bytes", core.ErrPartialWrite, wrote, n),
	}
}
