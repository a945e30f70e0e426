package techniques

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// ICMPPing sends a type-8 echo request (or, for an IPv6 destination,
// type-128) embedding a timestamp so the caller can recover RTT from the
// raw echo reply, and reports liveness: an echo reply means Up, a
// destination-unreachable or silence both mean Down (the spec draws no
// distinction for ping purposes, unlike the TCP/UDP techniques where
// ICMP-vs-silence changes the verdict).
func ICMPPing(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, timeout time.Duration) (result.PingResult, error) {
	isV6 := dst.To4() == nil
	id := uint16(rand.Intn(0xffff))

	var ipPacket []byte
	var m match.LayersMatch

	if isV6 {
		echo := packet.BuildICMPv6Echo(packet.ICMPEcho{
			Type:       packet.ICMPv6EchoRequest,
			Identifier: id,
			Sequence:   1,
			Payload:    packet.TimestampPayload(nil),
		}, to16(src), to16(dst))
		ipPacket = packet.BuildIPv6(packet.IPv6Header{NextHeader: packet.ProtoICMPv6, Src: src, Dst: dst}, echo)
		m = match.LayersMatch{
			Kind: match.KindLayer4ICMP,
			Layer4ICMP: &match.Layer4MatchICMP{
				Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
				Types:  []uint8{packet.ICMPv6EchoReply, packet.ICMPv6Unreachable},
			},
		}
	} else {
		echo := packet.BuildICMPv4Echo(packet.ICMPEcho{
			Type:       packet.ICMPv4EchoRequest,
			Identifier: id,
			Sequence:   1,
			Payload:    packet.TimestampPayload(nil),
		})
		ipPacket = packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoICMP, Src: src, Dst: dst, DontFrag: true}, echo)
		m = match.LayersMatch{
			Kind: match.KindLayer4ICMP,
			Layer4ICMP: &match.Layer4MatchICMP{
				Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
				Types:  []uint8{packet.ICMPv4EchoReply, packet.ICMPv4Unreachable},
			},
		}
	}

	data, rtt, err := sock.SendAndWait(ctx, dst, ipPacket, m, timeout)
	if err != nil {
		if err == result.ErrNoResponse {
			return result.PingResult{Addr: dst, Status: result.Down}, nil
		}
		return result.PingResult{}, err
	}

	family := 4
	if isV6 {
		family = 6
	}
	parsed, ok := match.ParseIP(data, family)
	if !ok || !parsed.HasICMP {
		return result.PingResult{Addr: dst, Status: result.Down}, nil
	}

	echoReplyType := uint8(packet.ICMPv4EchoReply)
	if isV6 {
		echoReplyType = packet.ICMPv6EchoReply
	}
	if parsed.ICMPType == echoReplyType {
		return result.PingResult{Addr: dst, Status: result.Up, RTT: rtt}, nil
	}
	return result.PingResult{Addr: dst, Status: result.Down, RTT: rtt}, nil
}

func to16(ip net.IP) [16]byte {
	var a [16]byte
	copy(a[:], ip.To16())
	return a
}
