package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/rawframe/internal/channel"
	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/core/frame"
	"firestige.xyz/rawframe/internal/core/header"
	"firestige.xyz/rawframe/internal/metrics"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Compose a frame and transmit it through the configured channel",
	Long: `Compose a frame and transmit it through the channel selected by the
channel section of the config file (or RAWFRAME_CHANNEL_* variables).

Backends that carry L3 frames (tun, dgram sockets, raw pcap files) receive
the frame without its Ethernet header. Interrupting stops between sends.`,
}

var (
	sendCount    int
	sendInterval time.Duration

	// openChannel is replaced in tests.
	openChannel = channel.NewInstrumented
)

func init() {
	sendCmd.PersistentFlags().IntVarP(&sendCount, "count", "n", 1, "number of frames to send (0 = until interrupted)")
	sendCmd.PersistentFlags().DurationVarP(&sendInterval, "interval", "i", time.Second, "pause between frames")
	sendCmd.AddCommand(frameCommands(runSendCommand)...)
}

func runSendCommand(cmd *cobra.Command, f frame.Frame, first gopacket.LayerType) error {
	backend, chCfg, err := globalCfg.Channel.Resolve()
	if err != nil {
		return err
	}
	if first == layers.LayerTypeEthernet && !channel.CarriesLinkHeader(backend, chCfg) {
		if f.Len() < header.EthernetLen {
			return fmt.Errorf("frame of %d bytes has no link header to strip", f.Len())
		}
		f = f[header.EthernetLen:]
		slog.Debug("link header stripped for L3 channel", "backend", backend)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if globalCfg.Metrics.Enabled {
		srv := metrics.NewServer(globalCfg.Metrics.Listen, globalCfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				slog.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	ch, err := openChannel(backend, chCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ch.Close(); err != nil {
			slog.Warn("channel close failed", "backend", backend, "error", err)
		}
	}()

	sent, err := runSend(ctx, ch, f, sendCount, sendInterval)
	fmt.Fprintf(cmd.OutOrStdout(), "sent %d frame(s) of %d bytes via %s\n", sent, f.Len(), backend)
	return err
}

// runSend transmits f count times (forever when count <= 0), pausing interval
// between frames. A rate-limited frame is retried once its window rotates.
// Cancellation ends the loop without error.
func runSend(ctx context.Context, ch channel.Channel, f frame.Frame, count int, interval time.Duration) (int, error) {
	sent := 0
	more := func() bool { return count <= 0 || sent < count }

	for more() {
		if ctx.Err() != nil {
			return sent, nil
		}
		_, err := ch.Send(f)
		var limited *core.RateLimitError
		if errors.As(err, &limited) {
			if !sleep(ctx, limited.RetryAfter) {
				return sent, nil
			}
			continue
		}
		if err != nil {
			return sent, err
		}
		sent++
		slog.Debug("frame sent", "seq", sent, "len", f.Len())

		if more() && !sleep(ctx, interval) {
			return sent, nil
		}
	}
	return sent, nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
