package channel

import (
	"errors"
	"syscall"
	"testing"

	"firestige.xyz/rawframe/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type fakeSys struct {
	socketArgs [3]int
	socketErr  error
	bindErr    error
	filterErr  error
	sendN      int // -1 = full length
	sendErr    error

	binds    []unix.Sockaddr
	sends    []*unix.SockaddrLinklayer
	closes   []int
	filtered []int
}

func withFakeSys(t *testing.T) *fakeSys {
	t.Helper()
	f := &fakeSys{sendN: -1}
	saved := sys
	sys = sysOps{
		socket: func(domain, typ, proto int) (int, error) {
			f.socketArgs = [3]int{domain, typ, proto}
			if f.socketErr != nil {
				return -1, f.socketErr
			}
			return 42, nil
		},
		bind: func(fd int, sa unix.Sockaddr) error {
			f.binds = append(f.binds, sa)
			return f.bindErr
		},
		sendmsg: func(fd int, p, oob []byte, to unix.Sockaddr, flags int) (int, error) {
			f.sends = append(f.sends, to.(*unix.SockaddrLinklayer))
			if f.sendErr != nil {
				return 0, f.sendErr
			}
			if f.sendN >= 0 {
				return f.sendN, nil
			}
			return len(p), nil
		},
		close: func(fd int) error {
			f.closes = append(f.closes, fd)
			return nil
		},
		attachFilter: func(fd int) error {
			f.filtered = append(f.filtered, fd)
			return f.filterErr
		},
		lookup: func(name string) (int, core.HardwareAddr, error) {
			if name == "missing0" {
				return 0, core.HardwareAddr{}, errors.New("link not found")
			}
			return 7, core.HardwareAddr{0x02, 0, 0, 0, 0, 0x07}, nil
		},
	}
	t.Cleanup(func() { sys = saved })
	return f
}

func TestOpenPassesNetworkOrderProtocol(t *testing.T) {
	f := withFakeSys(t)

	ch, err := Open(DomainPacket, TypeRaw, ProtocolARP)
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, unix.AF_PACKET, f.socketArgs[0])
	assert.Equal(t, unix.SOCK_RAW|unix.SOCK_CLOEXEC, f.socketArgs[1])
	assert.Equal(t, 0x0608, f.socketArgs[2], "ETH_P_ARP in network byte order")
	assert.Equal(t, DomainPacket, ch.Domain())
	assert.Equal(t, TypeRaw, ch.Type())
	assert.Equal(t, ProtocolARP, ch.Protocol())
}

func TestOpenFailureReturnsTypedError(t *testing.T) {
	f := withFakeSys(t)
	f.socketErr = syscall.EPERM

	ch, err := Open(DomainPacket, TypeDatagram, ProtocolIPv4)
	assert.Nil(t, ch)

	var openErr *core.ChannelOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, syscall.EPERM, openErr.Errno())
	assert.Equal(t, "dgram", openErr.Type)
	assert.Empty(t, f.closes, "nothing was acquired, nothing to release")
}

func TestOpenRejectsUnknownSelectors(t *testing.T) {
	withFakeSys(t)

	_, err := Open(Domain(9), TypeRaw, ProtocolARP)
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)

	_, err = Open(DomainPacket, Type(9), ProtocolARP)
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)

	_, err = Open(DomainPacket, TypeRaw, Protocol(0x86dd))
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)
}

func TestOpenReleasesSocketWhenSetupFails(t *testing.T) {
	t.Run("Lookup", func(t *testing.T) {
		f := withFakeSys(t)
		_, err := Open(DomainPacket, TypeRaw, ProtocolARP, WithInterface("missing0"))
		require.Error(t, err)
		assert.Equal(t, []int{42}, f.closes)
	})

	t.Run("Bind", func(t *testing.T) {
		f := withFakeSys(t)
		f.bindErr = syscall.ENODEV
		_, err := Open(DomainPacket, TypeRaw, ProtocolARP, WithInterface("eth0"))
		assert.ErrorIs(t, err, syscall.ENODEV)
		assert.Equal(t, []int{42}, f.closes)
	})

	t.Run("Filter", func(t *testing.T) {
		f := withFakeSys(t)
		f.filterErr = syscall.EINVAL
		_, err := Open(DomainPacket, TypeRaw, ProtocolARP, WithDropIncoming())
		assert.ErrorIs(t, err, syscall.EINVAL)
		assert.Equal(t, []int{42}, f.closes)
	})
}

func TestOpenBindsInterface(t *testing.T) {
	f := withFakeSys(t)

	ch, err := Open(DomainPacket, TypeRaw, ProtocolEtherAll, WithInterface("eth0"), WithDropIncoming())
	require.NoError(t, err)
	defer ch.Close()

	require.Len(t, f.binds, 1)
	sa := f.binds[0].(*unix.SockaddrLinklayer)
	assert.Equal(t, 7, sa.Ifindex)
	assert.Equal(t, uint16(0x0300), sa.Protocol)
	assert.Equal(t, []int{42}, f.filtered)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := withFakeSys(t)

	ch, err := Open(DomainPacket, TypeRaw, ProtocolARP)
	require.NoError(t, err)

	assert.NoError(t, ch.Close())
	assert.NoError(t, ch.Close())
	assert.Equal(t, []int{42}, f.closes, "handle released exactly once")
}

func TestSendAfterClose(t *testing.T) {
	f := withFakeSys(t)

	ch, err := Open(DomainPacket, TypeRaw, ProtocolARP)
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	n, err := ch.Send(arpTestFrame())
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, core.ErrChannelClosed)
	var txErr *core.TransmissionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, len(arpTestFrame()), txErr.Len)
	assert.Empty(t, f.sends, "no syscall on a released handle")
}

func TestSendRawUsesFrameDestination(t *testing.T) {
	f := withFakeSys(t)

	ch, err := Open(DomainPacket, TypeRaw, ProtocolARP, WithInterface("eth0"))
	require.NoError(t, err)
	defer ch.Close()

	n, err := ch.Send(arpTestFrame())
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	require.Len(t, f.sends, 1)
	sa := f.sends[0]
	assert.Equal(t, [8]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, sa.Addr)
	assert.Equal(t, uint8(6), sa.Halen)
	assert.Equal(t, 7, sa.Ifindex)
	assert.Equal(t, uint16(0x0608), sa.Protocol)
}

func TestSendDatagramUsesPeer(t *testing.T) {
	t.Run("Broadcast", func(t *testing.T) {
		f := withFakeSys(t)
		ch, err := Open(DomainPacket, TypeDatagram, ProtocolIPv4)
		require.NoError(t, err)
		defer ch.Close()

		_, err = ch.Send(make([]byte, 20))
		require.NoError(t, err)
		assert.Equal(t, [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, f.sends[0].Addr)
	})

	t.Run("Configured", func(t *testing.T) {
		f := withFakeSys(t)
		peer := core.HardwareAddr{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
		ch, err := Open(DomainPacket, TypeDatagram, ProtocolIPv4, WithPeer(peer))
		require.NoError(t, err)
		defer ch.Close()

		_, err = ch.Send(make([]byte, 20))
		require.NoError(t, err)
		assert.Equal(t, [8]byte{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}, f.sends[0].Addr)
	})
}

func TestSendErrors(t *testing.T) {
	t.Run("OS", func(t *testing.T) {
		f := withFakeSys(t)
		f.sendErr = syscall.ENETDOWN
		ch, err := Open(DomainPacket, TypeRaw, ProtocolARP)
		require.NoError(t, err)
		defer ch.Close()

		_, err = ch.Send(arpTestFrame())
		var txErr *core.TransmissionError
		require.ErrorAs(t, err, &txErr)
		assert.Equal(t, syscall.ENETDOWN, txErr.Errno())
	})

	t.Run("Partial", func(t *testing.T) {
		f := withFakeSys(t)
		f.sendN = 10
		ch, err := Open(DomainPacket, TypeRaw, ProtocolARP)
		require.NoError(t, err)
		defer ch.Close()

		n, err := ch.Send(arpTestFrame())
		assert.Equal(t, 10, n)
		assert.ErrorIs(t, err, core.ErrPartialWrite)
	})
}

func TestNewSocketBackendDefaults(t *testing.T) {
	f := withFakeSys(t)

	ch, err := New(BackendSocket, Config{Interface: "eth0"})
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, unix.SOCK_RAW|unix.SOCK_CLOEXEC, f.socketArgs[1])
	assert.Equal(t, 0x0300, f.socketArgs[2], "ETH_P_ALL in network byte order")
	require.Len(t, f.binds, 1)
	assert.Equal(t, 7, f.binds[0].(*unix.SockaddrLinklayer).Ifindex)
}

func TestNewSocketBackendRequiresInterface(t *testing.T) {
	f := withFakeSys(t)

	ch, err := New(BackendSocket, Config{})
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	var openErr *core.ChannelOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "socket", openErr.Backend)
	assert.Zero(t, f.socketArgs, "no socket is acquired without an interface")
	assert.Empty(t, f.closes)
}

func TestNewSocketBackendFailureIsNilChannel(t *testing.T) {
	f := withFakeSys(t)
	f.socketErr = syscall.EACCES

	ch, err := New(BackendSocket, Config{Interface: "eth0", Type: TypeRaw, Protocol: ProtocolARP})
	assert.ErrorIs(t, err, syscall.EACCES)
	assert.Nil(t, ch)
}

// TestRawChannelLifecycle exercises a real socket. It needs CAP_NET_RAW.
func TestRawChannelLifecycle(t *testing.T) {
	for i := 0; i < 2; i++ {
		ch, err := Open(DomainPacket, TypeRaw, ProtocolARP, WithDropIncoming())
		if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			t.Skip("raw sockets need CAP_NET_RAW")
		}
		require.NoError(t, err, "open #%d", i)
		require.NoError(t, ch.Close())
		require.NoError(t, ch.Close())
	}
}
