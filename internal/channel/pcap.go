package channel

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const (
	pcapBackend        = string(BackendPCAP)
	defaultPCAPSnapLen = 65536
)

// pcapChannel appends every frame to a pcap file instead of the wire.
type pcapChannel struct {
	path    string
	snapLen int
	now     func() time.Time

	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer
	closed bool
}

func pcapLinkType(s string) (layers.LinkType, error) {
	switch strings.ToLower(s) {
	case "", "ethernet", "en10mb":
		return layers.LinkTypeEthernet, nil
	case "raw", "ipv4":
		return layers.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("pcap link type %q: %w", s, core.ErrUnsupportedSelector)
}

func openPCAP(cfg PCAPConfig) (Channel, error) {
	openErr := func(err error) error {
		return &core.ChannelOpenError{Backend: pcapBackend, Err: err}
	}
	if cfg.Path == "" {
		return nil, openErr(fmt.Errorf("pcap backend requires a file path: %w", core.ErrConfigInvalid))
	}
	linkType, err := pcapLinkType(cfg.LinkType)
	if err != nil {
		return nil, openErr(err)
	}
	snapLen := cfg.SnapLen
	if snapLen <= 0 {
		snapLen = defaultPCAPSnapLen
	}

	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, openErr(err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(snapLen), linkType); err != nil {
		f.Close()
		return nil, openErr(fmt.Errorf("write pcap header: %w", err))
	}

	slog.Debug("pcap channel opened", "path", cfg.Path, "link_type", linkType)
	return &pcapChannel{path: cfg.Path, snapLen: snapLen, now: time.Now, file: f, writer: w}, nil
}

func (c *pcapChannel) Send(frame []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, closedError(pcapBackend, len(frame))
	}
	data := frame
	if len(data) > c.snapLen {
		data = data[:c.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     c.now(),
		CaptureLength: len(data),
		Length:        len(frame),
	}
	if err := c.writer.WritePacket(ci, data); err != nil {
		return 0, &core.TransmissionError{Backend: pcapBackend, Len: len(frame), Err: err}
	}
	return len(frame), nil
}

func (c *pcapChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	slog.Debug("pcap channel closed", "path", c.path)
	return c.file.Close()
}
