package channel

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"firestige.xyz/rawframe/internal/core"
	"golang.org/x/sys/unix"
)

const socketBackend = string(BackendSocket)

// syscalls used by RawChannel; replaced in tests.
type sysOps struct {
	socket       func(domain, typ, proto int) (int, error)
	bind         func(fd int, sa unix.Sockaddr) error
	sendmsg      func(fd int, p, oob []byte, to unix.Sockaddr, flags int) (int, error)
	close        func(fd int) error
	attachFilter func(fd int) error
	lookup       func(name string) (int, core.HardwareAddr, error)
}

var sys = sysOps{
	socket:       unix.Socket,
	bind:         unix.Bind,
	sendmsg:      unix.SendmsgN,
	close:        unix.Close,
	attachFilter: attachDropFilter,
	lookup:       lookupInterface,
}

// RawChannel is an AF_PACKET socket that exclusively owns its file descriptor.
type RawChannel struct {
	domain   Domain
	typ      Type
	protocol Protocol
	ifindex  int
	peer     core.HardwareAddr

	mu     sync.RWMutex
	fd     int
	closed bool
}

// Open acquires a packet socket. The protocol is handed to the kernel in network
// byte order. On failure nothing is left open.
func Open(domain Domain, typ Type, protocol Protocol, opts ...Option) (*RawChannel, error) {
	var o rawOptions
	for _, opt := range opts {
		opt(&o)
	}

	openErr := func(err error) error {
		return &core.ChannelOpenError{
			Backend:  socketBackend,
			Domain:   domain.String(),
			Type:     typ.String(),
			Protocol: protocol.String(),
			Err:      err,
		}
	}

	sysDomain, sysType, err := sysValues(domain, typ)
	if err != nil {
		return nil, openErr(err)
	}
	switch protocol {
	case ProtocolEtherAll, ProtocolARP, ProtocolIPv4:
	default:
		return nil, openErr(fmt.Errorf("%v: %w", protocol, core.ErrUnsupportedSelector))
	}

	fd, err := sys.socket(sysDomain, sysType|unix.SOCK_CLOEXEC, int(htons(uint16(protocol))))
	if err != nil {
		return nil, openErr(err)
	}

	c := &RawChannel{
		domain:   domain,
		typ:      typ,
		protocol: protocol,
		peer:     o.peer,
		fd:       fd,
	}
	if c.peer.IsZero() {
		c.peer = core.BroadcastHardwareAddr
	}

	if err := c.setup(o); err != nil {
		if cerr := sys.close(fd); cerr != nil {
			slog.Warn("close raw socket after failed setup", "fd", fd, "error", cerr)
		}
		return nil, openErr(err)
	}

	runtime.SetFinalizer(c, (*RawChannel).finalize)
	slog.Debug("raw channel opened",
		"domain", domain, "type", typ, "protocol", protocol, "interface", o.iface, "ifindex", c.ifindex)
	return c, nil
}

func (c *RawChannel) setup(o rawOptions) error {
	if o.iface != "" {
		index, _, err := sys.lookup(o.iface)
		if err != nil {
			return err
		}
		c.ifindex = index
		sa := &unix.SockaddrLinklayer{Protocol: htons(uint16(c.protocol)), Ifindex: index}
		if err := sys.bind(c.fd, sa); err != nil {
			return fmt.Errorf("bind to %s: %w", o.iface, err)
		}
	}
	if o.dropIncoming {
		if err := sys.attachFilter(c.fd); err != nil {
			return fmt.Errorf("attach drop filter: %w", err)
		}
	}
	return nil
}

func sysValues(domain Domain, typ Type) (int, int, error) {
	if domain != DomainPacket {
		return 0, 0, fmt.Errorf("%v: %w", domain, core.ErrUnsupportedSelector)
	}
	switch typ {
	case TypeRaw:
		return unix.AF_PACKET, unix.SOCK_RAW, nil
	case TypeDatagram:
		return unix.AF_PACKET, unix.SOCK_DGRAM, nil
	}
	return 0, 0, fmt.Errorf("%v: %w", typ, core.ErrUnsupportedSelector)
}

func (c *RawChannel) Domain() Domain     { return c.domain }
func (c *RawChannel) Type() Type         { return c.typ }
func (c *RawChannel) Protocol() Protocol { return c.protocol }

// Send writes frame. For TypeRaw the link destination is the frame's own first
// six bytes; for TypeDatagram it is the configured peer.
func (c *RawChannel) Send(frame []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, closedError(socketBackend, len(frame))
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(uint16(c.protocol)),
		Ifindex:  c.ifindex,
		Halen:    core.HardwareAddrLen,
	}
	if c.typ == TypeRaw {
		copy(sa.Addr[:], frame[:min(len(frame), core.HardwareAddrLen)])
	} else {
		copy(sa.Addr[:], c.peer[:])
	}

	n, err := sys.sendmsg(c.fd, frame, nil, sa, 0)
	if err != nil {
		return n, &core.TransmissionError{Backend: socketBackend, Len: len(frame), Err: err}
	}
	if n != len(frame) {
		return n, shortWriteError(socketBackend, n, len(frame))
	}
	return n, nil
}

// Close releases the socket. Only the first call reaches the kernel.
func (c *RawChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	fd := c.fd
	c.fd = -1
	runtime.SetFinalizer(c, nil)

	if err := sys.close(fd); err != nil {
		return fmt.Errorf("close raw socket: %w", err)
	}
	slog.Debug("raw channel closed", "fd", fd)
	return nil
}

func (c *RawChannel) finalize() {
	slog.Warn("raw channel was not closed before being garbage collected", "fd", c.fd)
	_ = c.Close()
}
