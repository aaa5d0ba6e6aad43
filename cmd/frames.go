package cmd

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/rawframe/internal/channel"
	"firestige.xyz/rawframe/internal/core/frame"
	"firestige.xyz/rawframe/internal/core/header"
	"firestige.xyz/rawframe/internal/recipe"
)

// frameRunner consumes a composed frame. first is the outermost layer type.
type frameRunner func(cmd *cobra.Command, f frame.Frame, first gopacket.LayerType) error

// frameCommands returns the arp, udp and recipe subcommands wired to run.
func frameCommands(run frameRunner) []*cobra.Command {
	return []*cobra.Command{
		newARPCommand(run),
		newUDPCommand(run),
		newRecipeCommand(run),
	}
}

type arpOptions struct {
	srcMAC    string
	dstMAC    string
	op        string
	senderIP  string
	targetMAC string
	targetIP  string
}

func newARPCommand(run frameRunner) *cobra.Command {
	var o arpOptions
	c := &cobra.Command{
		Use:   "arp",
		Short: "ARP request or reply",
		Example: `  rawframe build arp --src-mac 02:00:00:00:00:01 --sender-ip 192.168.1.10 --target-ip 192.168.1.1
  rawframe send arp --op reply --dst-mac 02:00:00:00:00:02 --sender-ip 192.168.1.10 --target-ip 192.168.1.20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceMAC(o.srcMAC)
			if err != nil {
				return err
			}
			o.srcMAC = src
			f, err := buildARP(o)
			if err != nil {
				return err
			}
			return run(cmd, f, layers.LayerTypeEthernet)
		},
	}

	fs := c.Flags()
	fs.StringVar(&o.srcMAC, "src-mac", "", "source and sender hardware address (default: channel interface MAC)")
	fs.StringVar(&o.dstMAC, "dst-mac", "ff:ff:ff:ff:ff:ff", "destination hardware address")
	fs.StringVar(&o.op, "op", "request", "operation: request | reply")
	fs.StringVar(&o.senderIP, "sender-ip", "", "sender protocol address")
	fs.StringVar(&o.targetMAC, "target-mac", "00:00:00:00:00:00", "target hardware address")
	fs.StringVar(&o.targetIP, "target-ip", "", "target protocol address")
	_ = c.MarkFlagRequired("sender-ip")
	_ = c.MarkFlagRequired("target-ip")
	return c
}

func buildARP(o arpOptions) (frame.Frame, error) {
	op, err := header.ParseOperation(o.op)
	if err != nil {
		return nil, err
	}
	eth, err := header.NewEthernet(o.dstMAC, o.srcMAC, header.EtherTypeARP)
	if err != nil {
		return nil, fmt.Errorf("ethernet: %w", err)
	}
	arp, err := header.NewARP(header.HardwareTypeEther, header.ProtocolTypeIPv4, op)
	if err != nil {
		return nil, fmt.Errorf("arp: %w", err)
	}
	payload, err := header.NewARPPayload(o.srcMAC, o.senderIP, o.targetMAC, o.targetIP)
	if err != nil {
		return nil, fmt.Errorf("arp payload: %w", err)
	}
	return frame.Compose(eth.Bytes(), arp.Bytes(), payload.Bytes()), nil
}

type udpOptions struct {
	srcMAC  string
	dstMAC  string
	srcIP   string
	dstIP   string
	srcPort uint16
	dstPort uint16
	ttl     uint8
	id      uint16
	text    string
	dnsName string
	dnsType string
}

func newUDPCommand(run frameRunner) *cobra.Command {
	var o udpOptions
	c := &cobra.Command{
		Use:   "udp",
		Short: "IPv4/UDP datagram with lengths and checksums filled in",
		Example: `  rawframe build udp --src-mac 02:00:00:00:00:01 --src-ip 10.0.0.1 --dst-ip 10.0.0.2 --dst-port 9 --text hello
  rawframe send udp --src-ip 10.0.0.1 --dst-ip 10.0.0.53 --dst-port 53 --dns example.com --dns-type AAAA`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sourceMAC(o.srcMAC)
			if err != nil {
				return err
			}
			o.srcMAC = src
			f, err := buildUDP(o)
			if err != nil {
				return err
			}
			return run(cmd, f, layers.LayerTypeEthernet)
		},
	}

	fs := c.Flags()
	fs.StringVar(&o.srcMAC, "src-mac", "", "source hardware address (default: channel interface MAC)")
	fs.StringVar(&o.dstMAC, "dst-mac", "ff:ff:ff:ff:ff:ff", "destination hardware address")
	fs.StringVar(&o.srcIP, "src-ip", "", "source IPv4 address")
	fs.StringVar(&o.dstIP, "dst-ip", "", "destination IPv4 address")
	fs.Uint16Var(&o.srcPort, "src-port", 40000, "source port")
	fs.Uint16Var(&o.dstPort, "dst-port", 9, "destination port")
	fs.Uint8Var(&o.ttl, "ttl", 64, "time to live")
	fs.Uint16Var(&o.id, "id", 1, "IPv4 identification")
	fs.StringVar(&o.text, "text", "", "payload text")
	fs.StringVar(&o.dnsName, "dns", "", "payload is a DNS query for this name")
	fs.StringVar(&o.dnsType, "dns-type", "A", "DNS query type")
	c.MarkFlagsMutuallyExclusive("text", "dns")
	_ = c.MarkFlagRequired("src-ip")
	_ = c.MarkFlagRequired("dst-ip")
	return c
}

// buildUDP finalizes each header against what follows it, then composes.
func buildUDP(o udpOptions) (frame.Frame, error) {
	payload := []byte(o.text)
	if o.dnsName != "" {
		q := recipe.DNSQuery{Name: o.dnsName, Type: o.dnsType}
		var err error
		if payload, err = q.Pack(); err != nil {
			return nil, fmt.Errorf("dns payload: %w", err)
		}
	}

	ip, err := header.NewIPv4FromStrings(o.srcIP, o.dstIP, header.IPProtocolUDP,
		header.WithTTL(o.ttl), header.WithID(o.id))
	if err != nil {
		return nil, fmt.Errorf("ipv4: %w", err)
	}
	udp, err := header.NewUDP(o.srcPort, o.dstPort, header.WithPseudoHeader(ip)).Finalize(payload)
	if err != nil {
		return nil, fmt.Errorf("udp: %w", err)
	}
	ip, err = ip.Finalize(header.UDPLen + len(payload))
	if err != nil {
		return nil, fmt.Errorf("ipv4: %w", err)
	}
	eth, err := header.NewEthernet(o.dstMAC, o.srcMAC, header.EtherTypeIPv4)
	if err != nil {
		return nil, fmt.Errorf("ethernet: %w", err)
	}
	return frame.ComposeWithPayload(payload, eth.Bytes(), ip.Bytes(), udp.Bytes()), nil
}

func newRecipeCommand(run frameRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "recipe <file>",
		Short: "Frame described by a YAML recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := recipe.Load(args[0])
			if err != nil {
				return err
			}
			f, err := rc.Build()
			if err != nil {
				return err
			}
			return run(cmd, f, rc.FirstLayer())
		},
	}
}

// sourceMAC falls back to the hardware address of the configured interface.
func sourceMAC(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if globalCfg == nil || globalCfg.Channel.Interface == "" {
		return "", errors.New("--src-mac is required when no channel interface is configured")
	}
	mac, err := channel.InterfaceHardwareAddr(globalCfg.Channel.Interface)
	if err != nil {
		return "", fmt.Errorf("resolve source MAC: %w", err)
	}
	return mac.String(), nil
}
