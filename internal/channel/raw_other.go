//go:build !linux

package channel

import (
	"firestige.xyz/rawframe/internal/core"
)

// RawChannel is only available on Linux.
type RawChannel struct{}

// Open always fails outside Linux.
func Open(domain Domain, typ Type, protocol Protocol, _ ...Option) (*RawChannel, error) {
	return nil, &core.ChannelOpenError{
		Backend:  string(BackendSocket),
		Domain:   domain.String(),
		Type:     typ.String(),
		Protocol: protocol.String(),
		Err:      core.ErrUnsupportedPlatform,
	}
}

func (c *RawChannel) Send(frame []byte) (int, error) {
	return 0, closedError(string(BackendSocket), len(frame))
}

func (c *RawChannel) Close() error { return nil }

// InterfaceHardwareAddr always fails outside Linux.
func InterfaceHardwareAddr(string) (core.HardwareAddr, error) {
	return core.HardwareAddr{}, core.ErrUnsupportedPlatform
}

func openRing(Config) (Channel, error) {
	return nil, &core.ChannelOpenError{Backend: string(BackendAFPacket), Err: core.ErrUnsupportedPlatform}
}

func openTUN(Config) (Channel, error) {
	return nil, &core.ChannelOpenError{Backend: string(BackendTUN), Err: core.ErrUnsupportedPlatform}
}
