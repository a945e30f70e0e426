// Package techniques implements the named probe strategies of C5: each one
// builds a packet via internal/packet, sends it through internal/transport
// with a internal/match predicate describing its reply, and folds the
// observation into a result.PortStatus or result.PingStatus per the table
// in the scan techniques section of the project's design notes. Grounded
// throughout in the teacher's probe.TCPProber/UDPProber send/receive shape,
// generalized from "build one fixed SYN packet for traceroute" to "build
// whichever flag combination the technique needs."
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

// icmpUnreachableCodes is the ICMP destination-unreachable code set that
// counts as a liveness/filtering signal across every TCP and UDP
// technique: protocol unreachable, host unreachable, port unreachable,
// and the three administratively-prohibited variants.
var icmpUnreachableCodes = []uint8{1, 2, 3, 9, 10, 13}

func randomSourcePort() uint16 {
	return uint16(30000 + rand.Intn(30000))
}

// tcpObservation captures what a combined TCP-or-ICMP wait saw: whether a
// TCP segment came back and with what flags/window, used by the per-
// technique classifiers below.
type tcpObservation struct {
	gotTCP    bool
	tcpFlags  uint8
	tcpWindow uint16
	rtt       *time.Duration
}

// SYNScan sends a TCP SYN and classifies the port per the SYN-scan row:
// SYN|ACK means Open, RST means Closed, and silence or an ICMP unreachable
// in icmpUnreachableCodes means Filtered.
func SYNScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagSYN, 1024, timeout, classifySYN)
}

// FINScan, NULLScan, and XmasScan share the "silence means OpenOrFiltered,
// RST means Closed, ICMP unreachable means Filtered" classification; only
// the flag byte differs.
func FINScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagFIN, 1024, timeout, classifyFinNullXmasMaimon)
}

func NULLScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, 0, 1024, timeout, classifyFinNullXmasMaimon)
}

func XmasScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagFIN|packet.FlagPSH|packet.FlagURG, 1024, timeout, classifyFinNullXmasMaimon)
}

// MaimonScan sends FIN+ACK; classification matches FIN/NULL/Xmas.
func MaimonScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagFIN|packet.FlagACK, 1024, timeout, classifyFinNullXmasMaimon)
}

// ACKScan sends ACK; it never reports Open or Closed (it measures
// firewall filtering, not listener state): RST means Unfiltered,
// everything else means Filtered.
func ACKScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagACK, 1024, timeout, classifyACK)
}

// WindowScan sends ACK like ACKScan but additionally inspects the RST's
// advertised window: non-zero means Open, zero means Closed.
func WindowScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	return tcpFlagScan(ctx, sock, src, dst, dstPort, packet.FlagACK, 2048, timeout, classifyWindow)
}

type classifier func(obs tcpObservation, gotICMPUnreachable bool) result.PortStatus

func classifySYN(obs tcpObservation, gotICMPUnreachable bool) result.PortStatus {
	if gotICMPUnreachable {
		return result.Filtered
	}
	if !obs.gotTCP {
		return result.Filtered
	}
	if obs.tcpFlags&packet.FlagRST != 0 {
		return result.Closed
	}
	if obs.tcpFlags&packet.FlagSYN != 0 && obs.tcpFlags&packet.FlagACK != 0 {
		return result.Open
	}
	return result.Filtered
}

func classifyFinNullXmasMaimon(obs tcpObservation, gotICMPUnreachable bool) result.PortStatus {
	if gotICMPUnreachable {
		return result.Filtered
	}
	if !obs.gotTCP {
		return result.OpenOrFiltered
	}
	if obs.tcpFlags&packet.FlagRST != 0 {
		return result.Closed
	}
	return result.OpenOrFiltered
}

func classifyACK(obs tcpObservation, gotICMPUnreachable bool) result.PortStatus {
	if obs.gotTCP && obs.tcpFlags&packet.FlagRST != 0 {
		return result.Unfiltered
	}
	return result.Filtered
}

func classifyWindow(obs tcpObservation, gotICMPUnreachable bool) result.PortStatus {
	if obs.gotTCP && obs.tcpFlags&packet.FlagRST != 0 {
		if obs.tcpWindow > 0 {
			return result.Open
		}
		return result.Closed
	}
	return result.Filtered
}

// tcpFlagScan sends one TCP probe with the given flags/window and runs a
// combined TCP-or-ICMP-unreachable matcher, since several techniques need
// to distinguish "RST" from "ICMP unreachable" from "silence" in one wait.
func tcpFlagScan(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, flags uint8, window uint16, timeout time.Duration, classify classifier) (result.PortStatus, *time.Duration, error) {
	srcPort := randomSourcePort()

	tcpHeader := packet.BuildTCP(packet.TCPHeader{
		SrcPort: srcPort,
		DstPort: dstPort,
		Flags:   flags,
		Window:  window,
	}, src, dst, nil)
	ipPacket := packet.BuildIPv4(packet.IPv4Header{
		Protocol: packet.ProtoTCP,
		Src:      src,
		Dst:      dst,
		DontFrag: true,
	}, tcpHeader)

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
					Codes:  icmpUnreachableCodes,
				},
			},
		},
	}

	data, rtt, err := sock.SendAndWait(ctx, dst, ipPacket, m, timeout)
	if err != nil && err != result.ErrNoResponse {
		return result.Unreachable, nil, err
	}
	if err == result.ErrNoResponse {
		return classify(tcpObservation{}, false), nil, nil
	}

	parsed, ok := match.ParseIP(data, 4)
	if !ok {
		return classify(tcpObservation{}, false), nil, nil
	}

	gotICMP := parsed.HasICMP && parsed.ICMPType == packet.ICMPv4Unreachable && containsU8(icmpUnreachableCodes, parsed.ICMPCode)
	obs := tcpObservation{rtt: rtt}
	if parsed.HasPorts {
		obs.gotTCP = true
		obs.tcpFlags = tcpFlagsFromRaw(data)
		obs.tcpWindow = tcpWindowFromRaw(data)
	}

	return classify(obs, gotICMP), rtt, nil
}

func containsU8(set []uint8, v uint8) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// tcpFlagsFromRaw and tcpWindowFromRaw pull the flags/window straight out
// of the raw IPv4 datagram bytes, since match.ParsedLayers only exposes
// ports for TCP/UDP (the technique layer is the only caller that needs
// flags/window, so there is no reason to grow the shared matcher struct).
func tcpFlagsFromRaw(ipPacket []byte) uint8 {
	ihl := int(ipPacket[0]&0x0f) * 4
	if len(ipPacket) < ihl+14 {
		return 0
	}
	return ipPacket[ihl+13]
}

func tcpWindowFromRaw(ipPacket []byte) uint16 {
	ihl := int(ipPacket[0]&0x0f) * 4
	if len(ipPacket) < ihl+16 {
		return 0
	}
	return uint16(ipPacket[ihl+14])<<8 | uint16(ipPacket[ihl+15])
}
