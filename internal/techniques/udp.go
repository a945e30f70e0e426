package techniques

import (
	"context"
	"net"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// UDPScan sends an (optionally payload-bearing) UDP datagram and classifies
// the port: any UDP reply means Open, an ICMP port-unreachable (type 3
// code 3) means Closed, silence means OpenOrFiltered, and any other ICMP
// unreachable means Filtered.
func UDPScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, payload []byte, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	srcPort := randomSourcePort()

	udpHeader := packet.BuildUDP(packet.UDPHeader{SrcPort: srcPort, DstPort: dstPort}, src, dst, payload)
	ipPacket := packet.BuildIPv4(packet.IPv4Header{
		Protocol: packet.ProtoUDP,
		Src:      src,
		Dst:      dst,
		DontFrag: true,
	}, udpHeader)

	dp, sp := dstPort, srcPort
	m := match.LayersMatch{
		Kind: match.KindAny,
		Any: []match.LayersMatch{
			{
				Kind: match.KindLayer4TCPUDP,
				Layer4TCPUD: &match.Layer4MatchTCPUDP{
					Layer3:  &match.Layer3Match{SrcAddr: dst, DstAddr: src},
					SrcPort: &dp,
					DstPort: &sp,
				},
			},
			{
				Kind: match.KindLayer4ICMP,
				Layer4ICMP: &match.Layer4MatchICMP{
					Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
					Types:  []uint8{packet.ICMPv4Unreachable},
				},
			},
		},
	}

	data, rtt, err := sock.SendAndWait(ctx, dst, ipPacket, m, timeout)
	if err != nil {
		if err == result.ErrNoResponse {
			return result.OpenOrFiltered, nil, nil
		}
		return result.Unreachable, nil, err
	}

	parsed, ok := match.ParseIP(data, 4)
	if !ok {
		return result.OpenOrFiltered, nil, nil
	}
	if parsed.HasPorts {
		return result.Open, rtt, nil
	}
	if parsed.HasICMP && parsed.ICMPType == packet.ICMPv4Unreachable {
		if parsed.ICMPCode == packet.ICMPv4PortUnreachable {
			return result.Closed, rtt, nil
		}
		return result.Filtered, rtt, nil
	}
	return result.OpenOrFiltered, nil, nil
}
