package channel

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/metrics"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHtons(t *testing.T) {
	assert.Equal(t, uint16(0x0608), htons(0x0806))
	assert.Equal(t, uint16(0x0300), htons(0x0003))
	assert.Equal(t, uint16(0x0008), htons(0x0800))
}

func TestParseSelectors(t *testing.T) {
	typ, err := ParseType("dgram")
	require.NoError(t, err)
	assert.Equal(t, TypeDatagram, typ)

	proto, err := ParseProtocol("ARP")
	require.NoError(t, err)
	assert.Equal(t, ProtocolARP, proto)

	_, err = ParseType("seqpacket")
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)
	_, err = ParseProtocol("ipv6")
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)

	assert.Equal(t, "packet", DomainPacket.String())
	assert.Equal(t, "raw", TypeRaw.String())
	assert.Equal(t, "all", ProtocolEtherAll.String())
}

func TestBackendFactory(t *testing.T) {
	assert.True(t, IsBackendSupported(BackendSocket))
	assert.True(t, IsBackendSupported(BackendPCAP))
	assert.False(t, IsBackendSupported(Backend("xdp")))

	ch, err := New(Backend("xdp"), Config{})
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, core.ErrUnknownBackend)
	var openErr *core.ChannelOpenError
	assert.ErrorAs(t, err, &openErr)
}

func TestPCAPChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	ch, err := New(BackendPCAP, Config{PCAP: PCAPConfig{Path: path}})
	require.NoError(t, err)

	frames := [][]byte{arpTestFrame(), append(arpTestFrame(), 0xde, 0xad)}
	for _, f := range frames {
		n, err := ch.Send(f)
		require.NoError(t, err)
		assert.Equal(t, len(f), n)
	}
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	_, err = ch.Send(frames[0])
	assert.ErrorIs(t, err, core.ErrChannelClosed)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	r, err := pcapgo.NewReader(file)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	for _, expected := range frames {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, expected, data)
		assert.Equal(t, len(expected), ci.Length)
	}
}

func TestPCAPChannelTruncatesToSnapLen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.pcap")
	ch, err := openPCAP(PCAPConfig{Path: path, SnapLen: 6, LinkType: "raw"})
	require.NoError(t, err)
	pc := ch.(*pcapChannel)
	pc.now = func() time.Time { return time.Unix(1700000000, 0) }

	n, err := ch.Send(arpTestFrame())
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	require.NoError(t, ch.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	r, err := pcapgo.NewReader(file)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeRaw, r.LinkType())
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Len(t, data, 6)
	assert.Equal(t, 14, ci.Length)
	assert.Equal(t, int64(1700000000), ci.Timestamp.Unix())
}

func TestPCAPChannelOpenErrors(t *testing.T) {
	_, err := New(BackendPCAP, Config{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(BackendPCAP, Config{PCAP: PCAPConfig{Path: filepath.Join(t.TempDir(), "x.pcap"), LinkType: "token-ring"}})
	assert.ErrorIs(t, err, core.ErrUnsupportedSelector)

	_, err = New(BackendPCAP, Config{PCAP: PCAPConfig{Path: filepath.Join(t.TempDir(), "no", "such", "dir.pcap")}})
	var openErr *core.ChannelOpenError
	assert.ErrorAs(t, err, &openErr)
}

type stubChannel struct {
	n      int
	err    error
	closed int
}

func (s *stubChannel) Send(frame []byte) (int, error) {
	if s.err != nil {
		return s.n, s.err
	}
	return len(frame), nil
}

func (s *stubChannel) Close() error {
	s.closed++
	return nil
}

func TestInstrument(t *testing.T) {
	stub := &stubChannel{}
	ch := Instrument(stub, Backend("stub-ok"))

	framesBefore := testutil.ToFloat64(metrics.FramesSentTotal.WithLabelValues("stub-ok"))
	bytesBefore := testutil.ToFloat64(metrics.BytesSentTotal.WithLabelValues("stub-ok"))

	_, err := ch.Send(make([]byte, 42))
	require.NoError(t, err)
	assert.Equal(t, framesBefore+1, testutil.ToFloat64(metrics.FramesSentTotal.WithLabelValues("stub-ok")))
	assert.Equal(t, bytesBefore+42, testutil.ToFloat64(metrics.BytesSentTotal.WithLabelValues("stub-ok")))

	require.NoError(t, ch.Close())
	assert.Equal(t, 1, stub.closed)
}

func TestInstrumentErrorKinds(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{&core.TransmissionError{Err: core.ErrChannelClosed}, metrics.ErrorTypeClosed},
		{&core.TransmissionError{Err: core.ErrPartialWrite}, metrics.ErrorTypePartial},
		{&core.TransmissionError{Err: syscall.ENOBUFS}, metrics.ErrorTypeOS},
		{errors.New("boom"), metrics.ErrorTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			ch := Instrument(&stubChannel{err: tt.err}, Backend("stub-err"))
			before := testutil.ToFloat64(metrics.SendErrorsTotal.WithLabelValues("stub-err", tt.expected))
			_, err := ch.Send([]byte{1})
			assert.Error(t, err)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.SendErrorsTotal.WithLabelValues("stub-err", tt.expected)))
		})
	}
}

func arpTestFrame() []byte {
	return []byte{
		0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
		0x08, 0x06,
	}
}

func TestCarriesLinkHeader(t *testing.T) {
	tests := []struct {
		backend  Backend
		cfg      Config
		expected bool
	}{
		{BackendSocket, Config{Type: TypeRaw}, true},
		{BackendSocket, Config{Type: TypeDatagram}, false},
		{BackendAFPacket, Config{}, true},
		{BackendTUN, Config{}, false},
		{BackendPCAP, Config{}, true},
		{BackendPCAP, Config{PCAP: PCAPConfig{LinkType: "ethernet"}}, true},
		{BackendPCAP, Config{PCAP: PCAPConfig{LinkType: "raw"}}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, CarriesLinkHeader(tt.backend, tt.cfg), "%s %+v", tt.backend, tt.cfg)
	}
}

func TestNewInstrumentedAppliesRateLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limited.pcap")
	ch, err := NewInstrumented(BackendPCAP, Config{
		PCAP:      PCAPConfig{Path: path},
		RateLimit: RateLimitConfig{MaxFramesPerDest: 1, Window: time.Minute},
	})
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.Send(arpTestFrame())
	require.NoError(t, err)
	_, err = ch.Send(arpTestFrame())
	assert.ErrorIs(t, err, core.ErrRateLimited)
}
