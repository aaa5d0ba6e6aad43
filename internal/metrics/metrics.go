// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesSentTotal counts frames fully written by a channel backend
	FramesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawframe_frames_sent_total",
			Help: "Total number of frames sent",
		},
		[]string{"backend"},
	)

	// BytesSentTotal counts bytes written by a channel backend
	BytesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawframe_bytes_sent_total",
			Help: "Total number of bytes sent",
		},
		[]string{"backend"},
	)

	// SendErrorsTotal counts failed sends by backend and error kind
	SendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawframe_send_errors_total",
			Help: "Total number of failed frame sends",
		},
		[]string{"backend", "error_type"},
	)

	// FramesThrottledTotal counts frames held back by the per-destination rate limit
	FramesThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawframe_frames_throttled_total",
			Help: "Total number of frames refused by the send rate limit",
		},
		[]string{"backend"},
	)

	// ChannelOpensTotal counts channel open attempts by result
	ChannelOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawframe_channel_opens_total",
			Help: "Total number of channel open attempts",
		},
		[]string{"backend", "result"},
	)

	// FrameSizeBytes tracks the size distribution of sent frames
	FrameSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawframe_frame_size_bytes",
			Help:    "Size of sent frames in bytes",
			Buckets: prometheus.ExponentialBuckets(32, 2, 10), // 32 to 16384
		},
		[]string{"backend"},
	)
)

// Error kinds used as the error_type label
const (
	ErrorTypeClosed  = "closed"
	ErrorTypePartial = "partial"
	ErrorTypeOS      = "os"
	ErrorTypeOther   = "other"
)

// Open results used as the result label
const (
	ResultOK    = "ok"
	ResultError = "error"
)
