package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"firestige.xyz/rawframe/internal/core"
	"github.com/google/gopacket/afpacket"
)

const ringBackend = string(BackendAFPacket)

// ringChannel transmits through a TPACKET_V3 memory-mapped socket.
type ringChannel struct {
	iface string

	mu     sync.RWMutex
	tp     *afpacket.TPacket
	closed bool
}

func openRing(cfg Config) (Channel, error) {
	opts := []interface{}{
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	}
	if cfg.Interface != "" {
		opts = append(opts, afpacket.OptInterface(cfg.Interface))
	}
	if cfg.AFPacket.FrameSize > 0 {
		opts = append(opts, afpacket.OptFrameSize(cfg.AFPacket.FrameSize))
	}
	if cfg.AFPacket.BlockSize > 0 {
		opts = append(opts, afpacket.OptBlockSize(cfg.AFPacket.BlockSize))
	}
	if cfg.AFPacket.NumBlocks > 0 {
		opts = append(opts, afpacket.OptNumBlocks(cfg.AFPacket.NumBlocks))
	}

	tp, err := afpacket.NewTPacket(opts...)
	if err != nil {
		return nil, &core.ChannelOpenError{
			Backend: ringBackend,
			Err:     fmt.Errorf("failed to create TPacket on %q: %w", cfg.Interface, err),
		}
	}

	slog.Debug("afpacket channel opened", "interface", cfg.Interface)
	return &ringChannel{iface: cfg.Interface, tp: tp}, nil
}

func (c *ringChannel) Send(frame []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, closedError(ringBackend, len(frame))
	}
	if err := c.tp.WritePacketData(frame); err != nil {
		return 0, &core.TransmissionError{Backend: ringBackend, Len: len(frame), Err: err}
	}
	return len(frame), nil
}

func (c *ringChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.tp.Close()
	c.tp = nil
	slog.Debug("afpacket channel closed", "interface", c.iface)
	return nil
}
