// Package header builds fixed-layout protocol headers in network byte order.
//
// Every header is immutable once constructed. Bytes returns the stored fields as
// they are; SerializeTo additionally honours gopacket.SerializeOptions so a
// header stack can be finalized against the payload that follows it.
package header

import (
	"fmt"
	"strings"

	"firestige.xyz/rawframe/internal/core"
)

// Header lengths in bytes.
const (
	EthernetLen   = 14
	ARPLen        = 8
	ARPPayloadLen = 20
	IPv4Len       = 20
	UDPLen        = 8

	// Minimum Ethernet frame length without FCS.
	EthernetMinFrameLen = 60
)

// Header is a serializable fixed-layout protocol header.
type Header interface {
	Bytes() []byte
	Len() int
}

// EtherType is the link-layer payload type code.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv6 EtherType = 0x86DD
)

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "ipv4"
	case EtherTypeARP:
		return "arp"
	case EtherTypeIPv6:
		return "ipv6"
	}
	return fmt.Sprintf("ethertype(0x%04x)", uint16(t))
}

func (t EtherType) valid() bool {
	return t == EtherTypeIPv4 || t == EtherTypeARP || t == EtherTypeIPv6
}

// HardwareType is the ARP hardware type code.
type HardwareType uint16

const (
	HardwareTypeEther HardwareType = 1
)

// AddrLen returns the hardware address length implied by the type.
func (t HardwareType) AddrLen() (uint8, bool) {
	switch t {
	case HardwareTypeEther:
		return core.HardwareAddrLen, true
	}
	return 0, false
}

func (t HardwareType) String() string {
	if t == HardwareTypeEther {
		return "ether"
	}
	return fmt.Sprintf("htype(%d)", uint16(t))
}

// ProtocolType is the ARP protocol type code. It shares the EtherType number space.
type ProtocolType uint16

const (
	ProtocolTypeIPv4 ProtocolType = 0x0800
)

// AddrLen returns the protocol address length implied by the type.
func (t ProtocolType) AddrLen() (uint8, bool) {
	switch t {
	case ProtocolTypeIPv4:
		return core.ProtocolAddrLen, true
	}
	return 0, false
}

func (t ProtocolType) String() string {
	if t == ProtocolTypeIPv4 {
		return "ipv4"
	}
	return fmt.Sprintf("ptype(0x%04x)", uint16(t))
}

// Operation is the ARP operation code.
type Operation uint16

const (
	OperationRequest Operation = 1
	OperationReply   Operation = 2
)

func (o Operation) String() string {
	switch o {
	case OperationRequest:
		return "request"
	case OperationReply:
		return "reply"
	}
	return fmt.Sprintf("op(%d)", uint16(o))
}

func (o Operation) valid() bool {
	return o == OperationRequest || o == OperationReply
}

// IPProtocol is the IPv4 next-protocol number.
type IPProtocol uint8

// https://www.iana.org/assignments/protocol-numbers
const (
	IPProtocolICMP IPProtocol = 1
	IPProtocolTCP  IPProtocol = 6
	IPProtocolUDP  IPProtocol = 17
)

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "icmp"
	case IPProtocolTCP:
		return "tcp"
	case IPProtocolUDP:
		return "udp"
	}
	return fmt.Sprintf("ipproto(%d)", uint8(p))
}

func (p IPProtocol) valid() bool {
	return p == IPProtocolICMP || p == IPProtocolTCP || p == IPProtocolUDP
}

func unsupported(what string, v fmt.Stringer) error {
	return fmt.Errorf("%s %v: %w", what, v, core.ErrUnsupportedSelector)
}

// ParseEtherType accepts "ipv4", "ipv6" or "arp" (case-insensitive).
func ParseEtherType(s string) (EtherType, error) {
	switch strings.ToLower(s) {
	case "ipv4":
		return EtherTypeIPv4, nil
	case "ipv6":
		return EtherTypeIPv6, nil
	case "arp":
		return EtherTypeARP, nil
	}
	return 0, fmt.Errorf("ethertype %q: %w", s, core.ErrUnsupportedSelector)
}

// ParseHardwareType accepts "ether".
func ParseHardwareType(s string) (HardwareType, error) {
	if strings.EqualFold(s, "ether") || strings.EqualFold(s, "ethernet") {
		return HardwareTypeEther, nil
	}
	return 0, fmt.Errorf("hardware type %q: %w", s, core.ErrUnsupportedSelector)
}

// ParseProtocolType accepts "ipv4".
func ParseProtocolType(s string) (ProtocolType, error) {
	if strings.EqualFold(s, "ipv4") {
		return ProtocolTypeIPv4, nil
	}
	return 0, fmt.Errorf("protocol type %q: %w", s, core.ErrUnsupportedSelector)
}

// ParseOperation accepts "request" or "reply".
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "request":
		return OperationRequest, nil
	case "reply", "response":
		return OperationReply, nil
	}
	return 0, fmt.Errorf("arp operation %q: %w", s, core.ErrUnsupportedSelector)
}

// ParseIPProtocol accepts "icmp", "tcp" or "udp".
func ParseIPProtocol(s string) (IPProtocol, error) {
	switch strings.ToLower(s) {
	case "icmp":
		return IPProtocolICMP, nil
	case "tcp":
		return IPProtocolTCP, nil
	case "udp":
		return IPProtocolUDP, nil
	}
	return 0, fmt.Errorf("ip protocol %q: %w", s, core.ErrUnsupportedSelector)
}
