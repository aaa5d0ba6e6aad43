package channel

import (
	"fmt"

	"firestige.xyz/rawframe/internal/core"
	"github.com/vishvananda/netlink"
)

// lookupInterface resolves an interface name to its index and hardware address.
func lookupInterface(name string) (int, core.HardwareAddr, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return 0, core.HardwareAddr{}, fmt.Errorf("lookup interface %s: %w", name, err)
	}
	attrs := link.Attrs()

	var mac core.HardwareAddr
	if len(attrs.HardwareAddr) == core.HardwareAddrLen {
		copy(mac[:], attrs.HardwareAddr)
	}
	return attrs.Index, mac, nil
}

// InterfaceHardwareAddr returns the MAC address of the named interface.
func InterfaceHardwareAddr(name string) (core.HardwareAddr, error) {
	_, mac, err := sys.lookup(name)
	return mac, err
}
