package match

import (
	"net"
	"testing"
)

func TestMatchLayer4ICMPWildcardsTypesAndCodes(t *testing.T) {
	l3 := &Layer3Match{SrcAddr: net.ParseIP("10.0.0.1"), DstAddr: net.ParseIP("10.0.0.2")}
	m := LayersMatch{Kind: KindLayer4ICMP, Layer4ICMP: &Layer4MatchICMP{Layer3: l3}}

	observed := ParsedLayers{
		SrcIP: net.ParseIP("10.0.0.1"), DstIP: net.ParseIP("10.0.0.2"),
		HasICMP: true, ICMPType: 3, ICMPCode: 2,
	}
	if !Match(m, observed) {
		t.Error("expected match with nil Types/Codes to accept any ICMP type/code")
	}
}

func TestMatchLayer4ICMPRejectsWrongSource(t *testing.T) {
	l3 := &Layer3Match{SrcAddr: net.ParseIP("10.0.0.1")}
	m := LayersMatch{Kind: KindLayer4ICMP, Layer4ICMP: &Layer4MatchICMP{Layer3: l3}}

	observed := ParsedLayers{SrcIP: net.ParseIP("10.0.0.99"), HasICMP: true}
	if Match(m, observed) {
		t.Error("expected mismatch on source address")
	}
}

func TestMatchLayer4TCPUDPRequiresPorts(t *testing.T) {
	m := LayersMatch{Kind: KindLayer4TCPUDP, Layer4TCPUD: &Layer4MatchTCPUDP{}}
	observed := ParsedLayers{HasPorts: false}
	if Match(m, observed) {
		t.Error("expected TCP/UDP matcher to reject a frame with no transport ports")
	}
}

func TestMatchLayer4TCPUDPFiltersOnDstPort(t *testing.T) {
	want := uint16(54321)
	m := LayersMatch{Kind: KindLayer4TCPUDP, Layer4TCPUD: &Layer4MatchTCPUDP{DstPort: &want}}

	if Match(m, ParsedLayers{HasPorts: true, DstPort: 80}) {
		t.Error("expected mismatch on destination port")
	}
	if !Match(m, ParsedLayers{HasPorts: true, DstPort: 54321}) {
		t.Error("expected match on destination port")
	}
}

func TestMatchLayer2FiltersOnMAC(t *testing.T) {
	srcMAC := net.HardwareAddr{0, 1, 2, 3, 4, 5}
	m := LayersMatch{Kind: KindLayer2, Layer2: &Layer2Match{SrcMAC: srcMAC}}

	if Match(m, ParsedLayers{SrcMAC: net.HardwareAddr{9, 9, 9, 9, 9, 9}}) {
		t.Error("expected mismatch on source MAC")
	}
	if !Match(m, ParsedLayers{SrcMAC: srcMAC}) {
		t.Error("expected match on source MAC")
	}
}
