package cmd

import (
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"firestige.xyz/rawframe/internal/core/frame"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compose a frame and print it without transmitting",
	Long: `Compose a frame and print its bytes as hex, followed by a decoded layer dump.

Nothing is sent and no privileges are needed.`,
}

var buildDump bool

func init() {
	buildCmd.PersistentFlags().BoolVar(&buildDump, "dump", true, "print a decoded layer dump after the hex bytes")
	buildCmd.AddCommand(frameCommands(runBuild)...)
}

func runBuild(cmd *cobra.Command, f frame.Frame, first gopacket.LayerType) error {
	return printFrame(cmd.OutOrStdout(), f, first, buildDump)
}

func printFrame(w io.Writer, f frame.Frame, first gopacket.LayerType, dump bool) error {
	if _, err := fmt.Fprintf(w, "frame: %d bytes\n%s\n", f.Len(), f.Hex()); err != nil {
		return err
	}
	if !dump {
		return nil
	}
	_, err := fmt.Fprint(w, frame.Describe(f, first))
	return err
}
