// Package match implements the declarative response predicate used by the
// transport fabric to decide whether an inbound frame answers an
// outstanding probe. It is a closed tagged union, not an interface with
// virtual dispatch, because the predicate shapes are fixed and small and a
// single switch keeps the matching hot path allocation-free (C4, spec
// §4.4). The variants and their field shapes are grounded in the
// Layer3Match/Layer4MatchIcmp/LayersMatch types referenced throughout
// original_source's ping/scan modules.
package match

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Layer2Match filters on Ethernet framing. A nil field is a wildcard.
type Layer2Match struct {
	EtherType *layers.EthernetType
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
}

// Layer3Match filters on IP source/destination, optionally nested under a
// Layer2Match for datalink-level capture.
type Layer3Match struct {
	Layer2  *Layer2Match
	SrcAddr net.IP
	DstAddr net.IP
}

// Layer4MatchTCPUDP filters on TCP or UDP ports atop a Layer3Match.
type Layer4MatchTCPUDP struct {
	Layer3  *Layer3Match
	SrcPort *uint16
	DstPort *uint16
}

// Layer4MatchICMP filters on ICMP/ICMPv6 type and code atop a Layer3Match.
// Types/Codes being nil means "any"; when non-nil, the observed type/code
// must be a member of the given set.
type Layer4MatchICMP struct {
	Layer3 *Layer3Match
	Types  []uint8
	Codes  []uint8
}

// Kind tags which variant a LayersMatch holds.
type Kind int

const (
	KindLayer2 Kind = iota
	KindLayer3
	KindLayer4TCPUDP
	KindLayer4ICMP
	KindAny
)

// LayersMatch is the tagged union a technique builds to describe what
// counts as "the response to this probe." Exactly one of the embedded
// pointers/slices is populated, selected by Kind. KindAny is the one
// variant that nests other variants: several techniques (SYN, ACK,
// FIN/NULL/Xmas/Maimon, UDP, IP-protocol) accept either a transport-layer
// reply or a qualifying ICMP error within the same wait, and the first one
// observed wins per the single-flight matcher invariant.
type LayersMatch struct {
	Kind        Kind
	Layer2      *Layer2Match
	Layer3      *Layer3Match
	Layer4TCPUD *Layer4MatchTCPUDP
	Layer4ICMP  *Layer4MatchICMP
	Any         []LayersMatch
}

// ParsedLayers is the minimal set of header fields Match reads out of an
// inbound frame, filled in by the transport fabric once per received
// packet regardless of how many outstanding matchers it is checked
// against.
type ParsedLayers struct {
	EtherType    *layers.EthernetType
	SrcMAC       net.HardwareAddr
	DstMAC       net.HardwareAddr
	SrcIP        net.IP
	DstIP        net.IP
	Proto        uint8 // IP protocol / next header
	SrcPort      uint16
	DstPort      uint16
	HasPorts     bool
	ICMPType     uint8
	ICMPCode     uint8
	HasICMP      bool
}

// ParseIP fills a ParsedLayers from a raw IPv4 or IPv6 packet with no
// Ethernet framing, the shape golang.org/x/net raw IP sockets hand back.
// family must be 4 or 6.
func ParseIP(data []byte, family int) (ParsedLayers, bool) {
	var firstLayer gopacket.LayerType
	if family == 6 {
		firstLayer = layers.LayerTypeIPv6
	} else {
		firstLayer = layers.LayerTypeIPv4
	}
	pkt := gopacket.NewPacket(data, firstLayer, gopacket.NoCopy)
	var pl ParsedLayers

	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		pl.SrcIP, pl.DstIP, pl.Proto = ip4.SrcIP, ip4.DstIP, uint8(ip4.Protocol)
	} else if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		pl.SrcIP, pl.DstIP, pl.Proto = ip6.SrcIP, ip6.DstIP, uint8(ip6.NextHeader)
	} else {
		return pl, false
	}

	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		pl.SrcPort, pl.DstPort, pl.HasPorts = uint16(tcp.SrcPort), uint16(tcp.DstPort), true
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		pl.SrcPort, pl.DstPort, pl.HasPorts = uint16(udp.SrcPort), uint16(udp.DstPort), true
	}

	if icmp4, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		pl.ICMPType, pl.ICMPCode, pl.HasICMP = uint8(icmp4.TypeCode.Type()), uint8(icmp4.TypeCode.Code()), true
	} else if icmp6, ok := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6); ok {
		pl.ICMPType, pl.ICMPCode, pl.HasICMP = uint8(icmp6.TypeCode.Type()), uint8(icmp6.TypeCode.Code()), true
	}

	return pl, true
}

// ParseEthernet fills a ParsedLayers from a raw Ethernet frame, used by the
// datalink (gopacket/pcap) transport path.
func ParseEthernet(data []byte) (ParsedLayers, bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	var pl ParsedLayers

	if eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		pl.EtherType = &eth.EthernetType
		pl.SrcMAC = eth.SrcMAC
		pl.DstMAC = eth.DstMAC
	} else {
		return pl, false
	}

	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		pl.SrcIP, pl.DstIP, pl.Proto = ip4.SrcIP, ip4.DstIP, uint8(ip4.Protocol)
	} else if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		pl.SrcIP, pl.DstIP, pl.Proto = ip6.SrcIP, ip6.DstIP, uint8(ip6.NextHeader)
	}

	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		pl.SrcPort, pl.DstPort, pl.HasPorts = uint16(tcp.SrcPort), uint16(tcp.DstPort), true
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		pl.SrcPort, pl.DstPort, pl.HasPorts = uint16(udp.SrcPort), uint16(udp.DstPort), true
	}

	if icmp4, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok {
		pl.ICMPType, pl.ICMPCode, pl.HasICMP = uint8(icmp4.TypeCode.Type()), uint8(icmp4.TypeCode.Code()), true
	} else if icmp6, ok := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6); ok {
		pl.ICMPType, pl.ICMPCode, pl.HasICMP = uint8(icmp6.TypeCode.Type()), uint8(icmp6.TypeCode.Code()), true
	}

	return pl, true
}

// Match reports whether observed satisfies m. A nil field anywhere in the
// predicate chain is a wildcard for that attribute.
func Match(m LayersMatch, observed ParsedLayers) bool {
	switch m.Kind {
	case KindLayer2:
		return matchLayer2(m.Layer2, observed)
	case KindLayer3:
		return matchLayer3(m.Layer3, observed)
	case KindLayer4TCPUDP:
		return matchLayer4TCPUDP(m.Layer4TCPUD, observed)
	case KindLayer4ICMP:
		return matchLayer4ICMP(m.Layer4ICMP, observed)
	case KindAny:
		for _, sub := range m.Any {
			if Match(sub, observed) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchLayer2(m *Layer2Match, o ParsedLayers) bool {
	if m == nil {
		return true
	}
	if m.EtherType != nil && (o.EtherType == nil || *m.EtherType != *o.EtherType) {
		return false
	}
	if len(m.SrcMAC) > 0 && !macEqual(m.SrcMAC, o.SrcMAC) {
		return false
	}
	if len(m.DstMAC) > 0 && !macEqual(m.DstMAC, o.DstMAC) {
		return false
	}
	return true
}

func matchLayer3(m *Layer3Match, o ParsedLayers) bool {
	if m == nil {
		return true
	}
	if !matchLayer2(m.Layer2, o) {
		return false
	}
	if m.SrcAddr != nil && !m.SrcAddr.Equal(o.SrcIP) {
		return false
	}
	if m.DstAddr != nil && !m.DstAddr.Equal(o.DstIP) {
		return false
	}
	return true
}

func matchLayer4TCPUDP(m *Layer4MatchTCPUDP, o ParsedLayers) bool {
	if m == nil {
		return true
	}
	if !matchLayer3(m.Layer3, o) {
		return false
	}
	if !o.HasPorts {
		return false
	}
	if m.SrcPort != nil && *m.SrcPort != o.SrcPort {
		return false
	}
	if m.DstPort != nil && *m.DstPort != o.DstPort {
		return false
	}
	return true
}

func matchLayer4ICMP(m *Layer4MatchICMP, o ParsedLayers) bool {
	if m == nil {
		return true
	}
	if !matchLayer3(m.Layer3, o) {
		return false
	}
	if !o.HasICMP {
		return false
	}
	if len(m.Types) > 0 && !containsU8(m.Types, o.ICMPType) {
		return false
	}
	if len(m.Codes) > 0 && !containsU8(m.Codes, o.ICMPCode) {
		return false
	}
	return true
}

func macEqual(a, b net.HardwareAddr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsU8(set []uint8, v uint8) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
