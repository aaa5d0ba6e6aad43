// Package core defines sentinel errors.
package core

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Sentinel errors. Typed errors below unwrap to one of these or to the OS error.
var (
	// Address parsing errors
	ErrAddressFormat = errors.New("rawframe: malformed address")

	// Header construction errors
	ErrUnsupportedSelector = errors.New("rawframe: unsupported selector value")
	ErrFieldRange          = errors.New("rawframe: header field out of range")

	// Channel errors
	ErrChannelClosed       = errors.New("rawframe: channel closed")
	ErrPartialWrite        = errors.New("rawframe: partial write")
	ErrUnsupportedPlatform = errors.New("rawframe: raw channels are not supported on this platform")
	ErrUnknownBackend      = errors.New("rawframe: unknown channel backend")
	ErrRateLimited         = errors.New("rawframe: send rate limit reached")

	// Configuration errors
	ErrConfigInvalid = errors.New("rawframe: invalid configuration")
	ErrRecipeInvalid = errors.New("rawframe: invalid frame recipe")
)

// AddressFormatError reports a textual hardware or protocol address that could not be parsed.
type AddressFormatError struct {
	Kind   string // "hardware" or "protocol"
	Input  string
	Reason string
}

func (e *AddressFormatError) Error() string {
	return fmt.Sprintf("rawframe: invalid %s address %q: %s", e.Kind, e.Input, e.Reason)
}

func (e *AddressFormatError) Unwrap() error {
	return ErrAddressFormat
}

// ChannelOpenError reports a failure to acquire a transmission endpoint.
type ChannelOpenError struct {
	Backend  string
	Domain   string
	Type     string
	Protocol string
	Err      error
}

func (e *ChannelOpenError) Error() string {
	if e.Domain == "" {
		return fmt.Sprintf("rawframe: open %s channel: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("rawframe: open %s channel (%s/%s/%s): %v",
		e.Backend, e.Domain, e.Type, e.Protocol, e.Err)
}

func (e *ChannelOpenError) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code behind the failure, or 0 if the cause was not a syscall error.
func (e *ChannelOpenError) Errno() syscall.Errno {
	return errnoOf(e.Err)
}

// TransmissionError reports a failed or short write of a frame.
type TransmissionError struct {
	Backend string
	Len     int // length of the frame that was being sent
	Err     error
}

func (e *TransmissionError) Error() string {
	return fmt.Sprintf("rawframe: send %d bytes on %s channel: %v", e.Len, e.Backend, e.Err)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code behind the failure, or 0 if the cause was not a syscall error.
func (e *TransmissionError) Errno() syscall.Errno {
	return errnoOf(e.Err)
}

// RateLimitError reports a frame held back before transmission because its
// destination used up the current window.
type RateLimitError struct {
	Dst        HardwareAddr
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rawframe: rate limit reached for %s, retry after %s", e.Dst, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
