// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/rawframe/internal/config"
	"firestige.xyz/rawframe/internal/log"
)

var (
	// Global flags
	configFile string

	// loaded by the persistent pre-run hook
	globalCfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rawframe",
	Short: "rawframe - build and transmit raw link-layer frames",
	Long: `rawframe composes Ethernet, ARP, IPv4 and UDP frames byte by byte and
transmits them unmodified through an AF_PACKET socket, a TPACKET ring,
a TUN device, or a pcap file.

Frames can be described with flags (arp, udp) or with a YAML recipe.
Sending needs CAP_NET_RAW unless the pcap backend is selected.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (empty: defaults plus RAWFRAME_* environment)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(checksumCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	globalCfg = cfg
	return nil
}
