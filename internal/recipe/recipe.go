// Package recipe describes frames declaratively in YAML and builds them with
// the header and frame packages.
//
//	name: gratuitous-arp
//	layers:
//	  - ethernet: {dst: "ff:ff:ff:ff:ff:ff", src: "02:00:00:00:00:01"}
//	  - arp: {operation: request}
//	  - arp_payload:
//	      sender_mac: "02:00:00:00:00:01"
//	      sender_ip: 192.168.1.10
//	      target_ip: 192.168.1.10
package recipe

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"

	"firestige.xyz/rawframe/internal/core"
	"firestige.xyz/rawframe/internal/core/frame"
	"firestige.xyz/rawframe/internal/core/header"
)

// Recipe is one frame description.
type Recipe struct {
	Name             string   `yaml:"name"`
	FixLengths       bool     `yaml:"fix_lengths"`
	ComputeChecksums bool     `yaml:"compute_checksums"`
	Layers           []Layer  `yaml:"layers"`
	Payload          *Payload `yaml:"payload"`
}

// Layer holds exactly one header description.
type Layer struct {
	Ethernet   *Ethernet   `yaml:"ethernet"`
	ARP        *ARP        `yaml:"arp"`
	ARPPayload *ARPPayload `yaml:"arp_payload"`
	IPv4       *IPv4       `yaml:"ipv4"`
	UDP        *UDP        `yaml:"udp"`
}

// Ethernet describes a link header. An empty ethertype is inferred from the next layer.
type Ethernet struct {
	Dst       string `yaml:"dst"`
	Src       string `yaml:"src"`
	EtherType string `yaml:"ethertype"`
}

// ARP describes the fixed ARP header. Empty fields default to ether/ipv4/request.
type ARP struct {
	HardwareType string `yaml:"hardware_type"`
	ProtocolType string `yaml:"protocol_type"`
	Operation    string `yaml:"operation"`
}

// ARPPayload describes the ARP address block. An empty target_mac is all zeros.
type ARPPayload struct {
	SenderMAC string `yaml:"sender_mac"`
	SenderIP  string `yaml:"sender_ip"`
	TargetMAC string `yaml:"target_mac"`
	TargetIP  string `yaml:"target_ip"`
}

// IPv4 describes a network header. An empty protocol is inferred from the next layer.
type IPv4 struct {
	Src        string  `yaml:"src"`
	Dst        string  `yaml:"dst"`
	Protocol   string  `yaml:"protocol"`
	TTL        *uint8  `yaml:"ttl"`
	ID         *uint16 `yaml:"id"`
	DSCP       uint8   `yaml:"dscp"`
	ECN        uint8   `yaml:"ecn"`
	Flags      uint8   `yaml:"flags"`
	FragOffset uint16  `yaml:"frag_offset"`
}

// UDP describes a transport header.
type UDP struct {
	SrcPort uint16 `yaml:"src_port"`
	DstPort uint16 `yaml:"dst_port"`
}

// Payload is the data behind the last header; exactly one field may be set.
type Payload struct {
	Text string    `yaml:"text"`
	Hex  string    `yaml:"hex"`
	DNS  *DNSQuery `yaml:"dns"`
}

// DNSQuery is a single-question DNS query message.
type DNSQuery struct {
	Name             string `yaml:"name"`
	Type             string `yaml:"type"` // defaults to A
	ID               uint16 `yaml:"id"`
	RecursionDesired *bool  `yaml:"recursion_desired"`
}

// Load reads a recipe file.
func Load(path string) (*Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes a recipe document.
func Parse(data []byte) (*Recipe, error) {
	return Decode(bytes.NewReader(data))
}

// Decode decodes a recipe document from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rc Recipe
	if err := dec.Decode(&rc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("empty document")
		}
		return nil, fmt.Errorf("%w: %w", core.ErrRecipeInvalid, err)
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Validate checks the structure without building any header.
func (r *Recipe) Validate() error {
	if len(r.Layers) == 0 && r.Payload == nil {
		return invalid("no layers and no payload")
	}
	for i, l := range r.Layers {
		if n := l.count(); n != 1 {
			return invalid("layer %d: expected exactly one header kind, got %d", i, n)
		}
	}
	if r.Payload != nil {
		n := 0
		if r.Payload.Text != "" {
			n++
		}
		if r.Payload.Hex != "" {
			n++
		}
		if r.Payload.DNS != nil {
			n++
		}
		if n > 1 {
			return invalid("payload: text, hex and dns are mutually exclusive")
		}
	}
	return nil
}

func (l Layer) count() int {
	n := 0
	for _, set := range []bool{l.Ethernet != nil, l.ARP != nil, l.ARPPayload != nil, l.IPv4 != nil, l.UDP != nil} {
		if set {
			n++
		}
	}
	return n
}

func (l Layer) kind() string {
	switch {
	case l.Ethernet != nil:
		return "ethernet"
	case l.ARP != nil:
		return "arp"
	case l.ARPPayload != nil:
		return "arp_payload"
	case l.IPv4 != nil:
		return "ipv4"
	case l.UDP != nil:
		return "udp"
	}
	return ""
}

// FirstLayer returns the decoder entry point for frames built from r.
func (r *Recipe) FirstLayer() gopacket.LayerType {
	if len(r.Layers) > 0 && r.Layers[0].IPv4 != nil {
		return layers.LayerTypeIPv4
	}
	return layers.LayerTypeEthernet
}

// Build assembles the frame.
func (r *Recipe) Build() (frame.Frame, error) {
	stack, err := r.Stack()
	if err != nil {
		return nil, err
	}
	return frame.Build(frame.Options{
		FixLengths:       r.FixLengths,
		ComputeChecksums: r.ComputeChecksums,
	}, stack...)
}

// Stack converts the recipe into serializable layers, payload last.
func (r *Recipe) Stack() ([]gopacket.SerializableLayer, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	stack := make([]gopacket.SerializableLayer, 0, len(r.Layers)+1)
	var lastIP *header.IPv4
	for i, l := range r.Layers {
		next := ""
		if i+1 < len(r.Layers) {
			next = r.Layers[i+1].kind()
		}

		var (
			layer gopacket.SerializableLayer
			err   error
		)
		switch {
		case l.Ethernet != nil:
			layer, err = l.Ethernet.header(next)
		case l.ARP != nil:
			layer, err = l.ARP.header()
		case l.ARPPayload != nil:
			layer, err = l.ARPPayload.header()
		case l.IPv4 != nil:
			var ip *header.IPv4
			ip, err = l.IPv4.header(next)
			lastIP, layer = ip, ip
		case l.UDP != nil:
			var opts []header.UDPOption
			if lastIP != nil {
				opts = append(opts, header.WithPseudoHeader(lastIP))
			}
			layer = header.NewUDP(l.UDP.SrcPort, l.UDP.DstPort, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d (%s): %w", core.ErrRecipeInvalid, i, l.kind(), err)
		}
		stack = append(stack, layer)
	}

	if r.Payload != nil {
		data, err := r.Payload.bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: payload: %w", core.ErrRecipeInvalid, err)
		}
		stack = append(stack, gopacket.Payload(data))
	}
	return stack, nil
}

func (e *Ethernet) header(next string) (*header.Ethernet, error) {
	var (
		etherType header.EtherType
		err       error
	)
	switch {
	case e.EtherType != "":
		etherType, err = header.ParseEtherType(e.EtherType)
	case next == "arp":
		etherType = header.EtherTypeARP
	case next == "ipv4":
		etherType = header.EtherTypeIPv4
	default:
		err = errors.New("ethertype is required when it cannot be inferred from the next layer")
	}
	if err != nil {
		return nil, err
	}
	return header.NewEthernet(e.Dst, e.Src, etherType)
}

func (a *ARP) header() (*header.ARP, error) {
	htype := header.HardwareTypeEther
	ptype := header.ProtocolTypeIPv4
	op := header.OperationRequest
	var err error
	if a.HardwareType != "" {
		if htype, err = header.ParseHardwareType(a.HardwareType); err != nil {
			return nil, err
		}
	}
	if a.ProtocolType != "" {
		if ptype, err = header.ParseProtocolType(a.ProtocolType); err != nil {
			return nil, err
		}
	}
	if a.Operation != "" {
		if op, err = header.ParseOperation(a.Operation); err != nil {
			return nil, err
		}
	}
	return header.NewARP(htype, ptype, op)
}

func (p *ARPPayload) header() (*header.ARPPayload, error) {
	tha := p.TargetMAC
	if tha == "" {
		tha = "00:00:00:00:00:00"
	}
	return header.NewARPPayload(p.SenderMAC, p.SenderIP, tha, p.TargetIP)
}

func (p *IPv4) header(next string) (*header.IPv4, error) {
	var (
		proto header.IPProtocol
		err   error
	)
	switch {
	case p.Protocol != "":
		proto, err = header.ParseIPProtocol(p.Protocol)
	case next == "udp":
		proto = header.IPProtocolUDP
	default:
		err = errors.New("protocol is required when it cannot be inferred from the next layer")
	}
	if err != nil {
		return nil, err
	}

	opts := []header.IPv4Option{
		header.WithTOS(p.DSCP, p.ECN),
		header.WithFlags(p.Flags, p.FragOffset),
	}
	if p.ID != nil {
		opts = append(opts, header.WithID(*p.ID))
	}
	if p.TTL != nil {
		opts = append(opts, header.WithTTL(*p.TTL))
	}
	return header.NewIPv4FromStrings(p.Src, p.Dst, proto, opts...)
}

func (p *Payload) bytes() ([]byte, error) {
	switch {
	case p.Hex != "":
		clean := strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(p.Hex)
		return hex.DecodeString(clean)
	case p.DNS != nil:
		return p.DNS.Pack()
	}
	return []byte(p.Text), nil
}

// Pack encodes the query in wire format.
func (q *DNSQuery) Pack() ([]byte, error) {
	if q.Name == "" {
		return nil, errors.New("dns query name is required")
	}
	qtype := dns.TypeA
	if q.Type != "" {
		t, ok := dns.StringToType[strings.ToUpper(q.Type)]
		if !ok {
			return nil, fmt.Errorf("dns query type %q: %w", q.Type, core.ErrUnsupportedSelector)
		}
		qtype = t
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(q.Name), qtype)
	m.Id = q.ID
	if q.RecursionDesired != nil {
		m.RecursionDesired = *q.RecursionDesired
	}
	return m.Pack()
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrRecipeInvalid, fmt.Sprintf(format, args...))
}
