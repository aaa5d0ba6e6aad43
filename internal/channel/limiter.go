package channel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/metrics"
)

// RateLimitConfig caps how many frames go to one destination hardware address
// per window. Frames on L3 channels share a single budget.
type RateLimitConfig struct {
	MaxFramesPerDest int           // 0 = disabled
	Window           time.Duration // default 1s
}

// DestinationLimiter counts frames per destination in a fixed window. The
// window rotates on the first call after it expires, dropping all counters.
type DestinationLimiter struct {
	mu           sync.Mutex
	current      map[core.HardwareAddr]*atomic.Int64
	windowStart  time.Time
	windowSize   time.Duration
	maxPerWindow int64

	rejected atomic.Int64
}

// NewDestinationLimiter creates a limiter. Returns nil if disabled (MaxFramesPerDest <= 0).
func NewDestinationLimiter(cfg RateLimitConfig) *DestinationLimiter {
	if cfg.MaxFramesPerDest <= 0 {
		return nil
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	return &DestinationLimiter{
		current:      make(map[core.HardwareAddr]*atomic.Int64),
		windowStart:  time.Now(),
		windowSize:   cfg.Window,
		maxPerWindow: int64(cfg.MaxFramesPerDest),
	}
}

// Allow reports whether one more frame to dst fits in the window containing now.
func (l *DestinationLimiter) Allow(dst core.HardwareAddr, now time.Time) bool {
	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[core.HardwareAddr]*atomic.Int64)
		l.windowStart = now
	}
	counter, exists := l.current[dst]
	if !exists {
		counter = &atomic.Int64{}
		l.current[dst] = counter
	}
	l.mu.Unlock()

	// refused frames leave the destination's count untouched
	for {
		n := counter.Load()
		if n >= l.maxPerWindow {
			l.rejected.Add(1)
			return false
		}
		if counter.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// RetryAfter returns how long until the window containing now rotates.
func (l *DestinationLimiter) RetryAfter(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.windowStart.Add(l.windowSize).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Rejected returns the total number of refused frames.
func (l *DestinationLimiter) Rejected() int64 {
	return l.rejected.Load()
}

// ActiveDestinations returns the number of distinct destinations in the current window.
func (l *DestinationLimiter) ActiveDestinations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.current)
}

// Throttle wraps ch so frames over the limit fail with a *core.RateLimitError
// before reaching the backend. A nil limiter returns ch unchanged.
func Throttle(ch Channel, backend Backend, linkHeader bool, l *DestinationLimiter) Channel {
	if l == nil {
		return ch
	}
	return &throttled{Channel: ch, backend: string(backend), linkHeader: linkHeader, limiter: l, now: time.Now}
}

type throttled struct {
	Channel
	backend    string
	linkHeader bool
	limiter    *DestinationLimiter
	now        func() time.Time
}

func (c *throttled) Send(frame []byte) (int, error) {
	var dst core.HardwareAddr
	if c.linkHeader {
		copy(dst[:], frame)
	}
	now := c.now()
	if !c.limiter.Allow(dst, now) {
		metrics.FramesThrottledTotal.WithLabelValues(c.backend).Inc()
		wait := c.limiter.RetryAfter(now)
		slog.Debug("frame throttled", "backend", c.backend, "dst", dst, "retry_after", wait)
		return 0, &core.RateLimitError{Dst: dst, RetryAfter: wait}
	}
	return c.Channel.Send(frame)
}
