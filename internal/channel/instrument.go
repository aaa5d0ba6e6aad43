package channel

import (
	"errors"
	"syscall"

	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/metrics"
)

// Instrument wraps ch so every Send is counted under the backend label.
func Instrument(ch Channel, backend Backend) Channel {
	return &instrumented{Channel: ch, backend: string(backend)}
}

// NewInstrumented opens a channel with New and records the open attempt. When
// cfg.RateLimit is set the result is also throttled per destination.
func NewInstrumented(backend Backend, cfg Config) (Channel, error) {
	ch, err := New(backend, cfg)
	if err != nil {
		metrics.ChannelOpensTotal.WithLabelValues(string(backend), metrics.ResultError).Inc()
		return nil, err
	}
	metrics.ChannelOpensTotal.WithLabelValues(string(backend), metrics.ResultOK).Inc()
	limiter := NewDestinationLimiter(cfg.RateLimit)
	return Throttle(Instrument(ch, backend), backend, CarriesLinkHeader(backend, cfg), limiter), nil
}

type instrumented struct {
	Channel
	backend string
}

func (c *instrumented) Send(frame []byte) (int, error) {
	n, err := c.Channel.Send(frame)
	if err != nil {
		metrics.SendErrorsTotal.WithLabelValues(c.backend, errorType(err)).Inc()
		return n, err
	}
	metrics.FramesSentTotal.WithLabelValues(c.backend).Inc()
	metrics.BytesSentTotal.WithLabelValues(c.backend).Add(float64(n))
	metrics.FrameSizeBytes.WithLabelValues(c.backend).Observe(float64(n))
	return n, nil
}

func errorType(err error) string {
	var errno syscall.Errno
	switch {
	case errors.Is(err, core.ErrChannelClosed):
		return metrics.ErrorTypeClosed
	case errors.Is(err, core.ErrPartialWrite):
		return metrics.ErrorTypePartial
	case errors.As(err, &errno):
		return metrics.ErrorTypeOS
	}
	return metrics.ErrorTypeOther
}
