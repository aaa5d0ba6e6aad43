package channel

import (
	"errors"
	"testing"
	"time"

	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinationLimiter_NilWhenDisabled(t *testing.T) {
	assert.Nil(t, NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 0}))

	stub := &stubChannel{}
	assert.Same(t, Channel(stub), Throttle(stub, BackendSocket, true, nil))
}

func TestDestinationLimiter_AllowsWithinLimit(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 5, Window: 10 * time.Second})
	dst := core.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(dst, now), "frame %d is within the limit", i)
	}
	assert.False(t, l.Allow(dst, now))
	assert.Equal(t, int64(1), l.Rejected())
}

func TestDestinationLimiter_RejectionsDoNotConsumeBudget(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 2, Window: 10 * time.Second})
	dst := core.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	now := time.Now()

	require.True(t, l.Allow(dst, now))
	require.True(t, l.Allow(dst, now))
	for i := 0; i < 3; i++ {
		assert.False(t, l.Allow(dst, now))
	}
	assert.Equal(t, int64(2), l.current[dst].Load())
	assert.Equal(t, int64(3), l.Rejected())
}

func TestDestinationLimiter_DestinationsIndependent(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 2, Window: 10 * time.Second})
	a := core.HardwareAddr{0x02, 0, 0, 0, 0, 0x0a}
	b := core.HardwareAddr{0x02, 0, 0, 0, 0, 0x0b}
	now := time.Now()

	l.Allow(a, now)
	l.Allow(a, now)
	assert.False(t, l.Allow(a, now))
	assert.True(t, l.Allow(b, now))
	assert.Equal(t, 2, l.ActiveDestinations())
}

func TestDestinationLimiter_WindowRotation(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 1, Window: time.Second})
	dst := core.BroadcastHardwareAddr
	now := time.Now()

	require.True(t, l.Allow(dst, now))
	require.False(t, l.Allow(dst, now))

	retry := l.RetryAfter(now)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Second)

	later := now.Add(2 * time.Second)
	assert.Equal(t, time.Duration(0), l.RetryAfter(later))
	assert.True(t, l.Allow(dst, later))
}

func TestThrottle(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 1, Window: time.Minute})
	ch := Throttle(&stubChannel{}, Backend("stub-throttle"), true, l)
	before := testutil.ToFloat64(metrics.FramesThrottledTotal.WithLabelValues("stub-throttle"))

	n, err := ch.Send(arpTestFrame())
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	_, err = ch.Send(arpTestFrame())
	assert.ErrorIs(t, err, core.ErrRateLimited)
	var limited *core.RateLimitError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, core.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, limited.Dst)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.FramesThrottledTotal.WithLabelValues("stub-throttle")))

	other := arpTestFrame()
	other[5] = 0x00
	_, err = ch.Send(other)
	assert.NoError(t, err, "another destination has its own budget")
}

func TestThrottleL3SharesBudget(t *testing.T) {
	l := NewDestinationLimiter(RateLimitConfig{MaxFramesPerDest: 1, Window: time.Minute})
	ch := Throttle(&stubChannel{}, BackendTUN, false, l)

	_, err := ch.Send([]byte{0x45, 0, 0, 20, 1, 2})
	require.NoError(t, err)
	_, err = ch.Send([]byte{0x45, 0, 0, 20, 9, 9})
	assert.ErrorIs(t, err, core.ErrRateLimited)
}
