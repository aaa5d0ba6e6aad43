package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/rawframe/internal/core"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <hex>",
	Short: "Compute the internet checksum of a byte string",
	Long: `Compute the RFC 1071 internet checksum of hex-encoded bytes.

Pass a header with its checksum field zeroed to get the value to store, or a
received header as-is to verify it. Spaces and colons are ignored.`,
	Example: "  rawframe checksum 4500003c1c46400040060000ac100a63ac100a0c",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChecksum(cmd.OutOrStdout(), args[0])
	},
}

func runChecksum(w io.Writer, s string) error {
	b, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "").Replace(s))
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	_, err = fmt.Fprintf(w, "length:   %d\nsum:      0x%04x\nchecksum: 0x%04x\nverify:   %t\n",
		len(b), core.Fold(b), core.Checksum(b), core.Verify(b))
	return err
}
