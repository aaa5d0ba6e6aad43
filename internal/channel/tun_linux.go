package channel

import (
	"log/slog"
	"sync"

	"firestige.xyz/rawframe/internal/core"
	"github.com/songgao/water"
)

const tunBackend = string(BackendTUN)

// tunChannel writes L3 frames (starting at the IPv4 header) to a TUN device.
type tunChannel struct {
	mu     sync.RWMutex
	dev    *water.Interface
	closed bool
}

func openTUN(cfg Config) (Channel, error) {
	wcfg := water.Config{DeviceType: water.TUN}
	wcfg.Name = cfg.TUN.Name
	wcfg.Persist = cfg.TUN.Persist

	dev, err := water.New(wcfg)
	if err != nil {
		return nil, &core.ChannelOpenError{Backend: tunBackend, Err: err}
	}

	slog.Debug("tun channel opened", "device", dev.Name())
	return &tunChannel{dev: dev}, nil
}

func (c *tunChannel) Send(frame []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, closedError(tunBackend, len(frame))
	}
	n, err := c.dev.Write(frame)
	if err != nil {
		return n, &core.TransmissionError{Backend: tunBackend, Len: len(frame), Err: err}
	}
	if n != len(frame) {
		return n, shortWriteError(tunBackend, n, len(frame))
	}
	return n, nil
}

func (c *tunChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	name := c.dev.Name()
	err := c.dev.Close()
	slog.Debug("tun channel closed", "device", name)
	return err
}
