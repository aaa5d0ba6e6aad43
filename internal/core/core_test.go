package core

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrAddressFormat, "rawframe: malformed address"},
			{ErrUnsupportedSelector, "rawframe: unsupported selector value"},
			{ErrChannelClosed, "rawframe: channel closed"},
			{ErrPartialWrite, "rawframe: partial write"},
			{ErrUnknownBackend, "rawframe: unknown channel backend"},
			{ErrRateLimited, "rawframe: send rate limit reached"},
			{ErrConfigInvalid, "rawframe: invalid configuration"},
			{ErrRecipeInvalid, "rawframe: invalid frame recipe"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("WrappedIdentity", func(t *testing.T) {
		wrapped := fmt.Errorf("build header: %w", ErrUnsupportedSelector)
		if !errors.Is(wrapped, ErrUnsupportedSelector) {
			t.Error("errors.Is failed through fmt.Errorf wrapping")
		}
	})
}

// Test typed errors
func TestTypedErrors(t *testing.T) {
	t.Run("AddressFormatError", func(t *testing.T) {
		var err error = &AddressFormatError{Kind: "hardware", Input: "zz", Reason: "bad"}
		if !errors.Is(err, ErrAddressFormat) {
			t.Error("AddressFormatError should unwrap to ErrAddressFormat")
		}
		var afe *AddressFormatError
		if !errors.As(fmt.Errorf("ctx: %w", err), &afe) || afe.Input != "zz" {
			t.Errorf("errors.As failed, got %v", afe)
		}
	})

	t.Run("ChannelOpenError", func(t *testing.T) {
		err := &ChannelOpenError{Backend: "socket", Domain: "packet", Type: "raw", Protocol: "arp", Err: syscall.EPERM}
		if !errors.Is(err, syscall.EPERM) {
			t.Error("ChannelOpenError should unwrap to the OS error")
		}
		if err.Errno() != syscall.EPERM {
			t.Errorf("expected EPERM, got %v", err.Errno())
		}
		if err.Error() != "rawframe: open socket channel (packet/raw/arp): operation not permitted" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("TransmissionError", func(t *testing.T) {
		err := &TransmissionError{Backend: "socket", Len: 42, Err: ErrChannelClosed}
		if !errors.Is(err, ErrChannelClosed) {
			t.Error("TransmissionError should unwrap to its cause")
		}
		if err.Errno() != 0 {
			t.Errorf("expected no errno, got %v", err.Errno())
		}
	})

	t.Run("RateLimitError", func(t *testing.T) {
		err := &RateLimitError{Dst: BroadcastHardwareAddr, RetryAfter: 250 * time.Millisecond}
		if !errors.Is(err, ErrRateLimited) {
			t.Error("RateLimitError should unwrap to ErrRateLimited")
		}
		if err.Error() != "rawframe: rate limit reached for ff:ff:ff:ff:ff:ff, retry after 250ms" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}
