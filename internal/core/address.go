package core

import (
	"fmt"
	"net/netip"
	"strings"
)

const (
	HardwareAddrLen = 6
	ProtocolAddrLen = 4
)

// HardwareAddr is a 6-byte link-layer (MAC) address.
type HardwareAddr [HardwareAddrLen]byte

// ProtocolAddr is a 4-byte network-layer (IPv4) address.
type ProtocolAddr [ProtocolAddrLen]byte

// BroadcastHardwareAddr is ff:ff:ff:ff:ff:ff.
var BroadcastHardwareAddr = HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseHardwareAddr parses six two-digit hex octets separated by ':' or '-'.
// Separators may not be mixed.
func ParseHardwareAddr(s string) (HardwareAddr, error) {
	sep := ":"
	if strings.Contains(s, "-") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != HardwareAddrLen {
		return HardwareAddr{}, &AddressFormatError{
			Kind:   "hardware",
			Input:  s,
			Reason: fmt.Sprintf("expected %d octets, got %d", HardwareAddrLen, len(parts)),
		}
	}

	var addr HardwareAddr
	for i, p := range parts {
		if len(p) != 2 {
			return HardwareAddr{}, &AddressFormatError{
				Kind:   "hardware",
				Input:  s,
				Reason: fmt.Sprintf("octet %d %q is not two hex digits", i, p),
			}
		}
		hi, ok1 := fromHexChar(p[0])
		lo, ok2 := fromHexChar(p[1])
		if !ok1 || !ok2 {
			return HardwareAddr{}, &AddressFormatError{
				Kind:   "hardware",
				Input:  s,
				Reason: fmt.Sprintf("octet %d %q is not hexadecimal", i, p),
			}
		}
		addr[i] = hi<<4 | lo
	}
	return addr, nil
}

// MustParseHardwareAddr is like ParseHardwareAddr but panics on error.
func MustParseHardwareAddr(s string) HardwareAddr {
	addr, err := ParseHardwareAddr(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Bytes returns the raw octets.
func (a HardwareAddr) Bytes() []byte {
	return a[:]
}

// String returns the canonical lowercase colon-separated form.
func (a HardwareAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsZero reports whether every octet is zero.
func (a HardwareAddr) IsZero() bool {
	return a == HardwareAddr{}
}

// ParseProtocolAddr parses a dotted-decimal IPv4 address.
func ParseProtocolAddr(s string) (ProtocolAddr, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return ProtocolAddr{}, &AddressFormatError{Kind: "protocol", Input: s, Reason: err.Error()}
	}
	if !ip.Is4() {
		return ProtocolAddr{}, &AddressFormatError{Kind: "protocol", Input: s, Reason: "not an IPv4 address"}
	}
	return ProtocolAddr(ip.As4()), nil
}

// MustParseProtocolAddr is like ParseProtocolAddr but panics on error.
func MustParseProtocolAddr(s string) ProtocolAddr {
	addr, err := ParseProtocolAddr(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Bytes returns the raw octets.
func (a ProtocolAddr) Bytes() []byte {
	return a[:]
}

// String returns the dotted-decimal form.
func (a ProtocolAddr) String() string {
	return netip.AddrFrom4(a).String()
}

// Addr converts to a net/netip address.
func (a ProtocolAddr) Addr() netip.Addr {
	return netip.AddrFrom4(a)
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
