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

// ICMPProtocolUnreachable is the destination-unreachable code meaning the
// target refused to speak the probed IP protocol.
const ICMPProtocolUnreachable = 2

// IPProtocolScan sends an empty IPv4 datagram for the given protocol number
// and classifies the target's support for it: any response on that
// protocol means Open, an ICMP protocol-unreachable means Closed, any
// other ICMP unreachable means Filtered, and silence means OpenOrFiltered.
func IPProtocolScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, proto uint8, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	ipPacket := packet.BuildIPv4(packet.IPv4Header{
		Protocol: proto,
		Src:      src,
		Dst:      dst,
	}, nil)

	m := match.LayersMatch{
		Kind: match.KindAny,
		Any: []match.LayersMatch{
			{
				Kind:   match.KindLayer3,
				Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
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
	if parsed.HasICMP && parsed.ICMPType == packet.ICMPv4Unreachable {
		if parsed.ICMPCode == ICMPProtocolUnreachable {
			return result.Closed, rtt, nil
		}
		return result.Filtered, rtt, nil
	}
	if parsed.Proto == proto {
		return result.Open, rtt, nil
	}
	return result.OpenOrFiltered, nil, nil
}
