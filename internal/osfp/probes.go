package osfp

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// probeTimeout bounds a single wait; sequence probes get one retransmit on
// top of this per the Pending->Sent->(Matched|TimedOut) state machine.
const probeTimeout = 2 * time.Second

// randomSourcePort picks an ephemeral source port for one probe, the same
// range the technique layer's TCP/UDP probes draw from.
func randomSourcePort() uint16 {
	return uint16(30000 + rand.Intn(30000))
}

// seqSpec is one of the six varying TCP probes the SEQ/OPS/WIN tests are
// derived from: nmap sends six near-identical SYN segments with varying
// window sizes and option orderings so a target's ISN/IP-ID increment
// pattern and option echo behavior can be sampled more than once.
type seqSpec struct {
	window  uint16
	flags   uint8
	options []byte
}

var seqSpecs = [6]seqSpec{
	{window: 1, flags: packet.FlagSYN | packet.FlagECE | packet.FlagCWR, options: padOptions(packet.TCPOptionWindowScale(10), packet.TCPOptionMSS(1460), packet.TCPOptionTimestamp(0xffffffff, 0), packet.TCPOptionSACKPermitted())},
	{window: 63, flags: packet.FlagSYN, options: padOptions(packet.TCPOptionMSS(1400), packet.TCPOptionWindowScale(0), packet.TCPOptionSACKPermitted(), packet.TCPOptionTimestamp(0xffffffff, 0))},
	{window: 4, flags: packet.FlagSYN, options: padOptions(packet.TCPOptionTimestamp(0xffffffff, 0), packet.TCPOptionWindowScale(5), packet.TCPOptionMSS(640), packet.TCPOptionSACKPermitted())},
	{window: 4, flags: packet.FlagSYN, options: padOptions(packet.TCPOptionSACKPermitted(), packet.TCPOptionTimestamp(0xffffffff, 0), packet.TCPOptionWindowScale(10), packet.TCPOptionMSS(1460))},
	{window: 16, flags: packet.FlagSYN, options: padOptions(packet.TCPOptionMSS(536), packet.TCPOptionSACKPermitted(), packet.TCPOptionTimestamp(0xffffffff, 0), packet.TCPOptionWindowScale(10))},
	{window: 512, flags: packet.FlagSYN, options: padOptions(packet.TCPOptionMSS(265), packet.TCPOptionSACKPermitted(), packet.TCPOptionTimestamp(0xffffffff, 0))},
}

// padOptions concatenates option blocks and pads the result to a 4-byte
// boundary with NOPs, since BuildTCP requires a pre-aligned option block.
func padOptions(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	for len(out)%4 != 0 {
		out = append(out, 1) // NOP
	}
	return out
}

// seqObservation is one SEQx probe's raw result, kept alongside the
// wall-clock send time so the signature pass can derive ISR/TS rates.
type seqObservation struct {
	sentAt  time.Time
	got     bool
	isn     uint32
	ipid    uint16
	window  uint16
	options string
	tsval   uint32
	hasTS   bool
}

// sendSeqProbe sends one SEQx SYN segment to the open port and retries
// exactly once on timeout, matching the sequence-probe retransmission rule.
func sendSeqProbe(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, openPort uint16, spec seqSpec) seqObservation {
	obs := sendSeqProbeOnce(ctx, sock, src, dst, openPort, spec)
	if !obs.got {
		obs = sendSeqProbeOnce(ctx, sock, src, dst, openPort, spec)
	}
	return obs
}

func sendSeqProbeOnce(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, openPort uint16, spec seqSpec) seqObservation {
	srcPort := randomSourcePort()
	header := packet.TCPHeader{SrcPort: srcPort, DstPort: openPort, Flags: spec.flags, Window: spec.window, Options: spec.options}
	tcpSeg := packet.BuildTCP(header, src, dst, nil)
	ipPkt := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoTCP, Src: src, Dst: dst, DontFrag: true}, tcpSeg)

	dp, sp := openPort, srcPort
	m := match.LayersMatch{
		Kind: match.KindLayer4TCPUDP,
		Layer4TCPUD: &match.Layer4MatchTCPUDP{
			Layer3:  &match.Layer3Match{SrcAddr: dst, DstAddr: src},
			SrcPort: &dp,
			DstPort: &sp,
		},
	}

	sentAt := time.Now()
	data, _, err := sock.SendAndWait(ctx, dst, ipPkt, m, probeTimeout)
	if err != nil {
		return seqObservation{sentAt: sentAt}
	}

	_, _, ipid, _, ihl, ok := ipv4Fields(data)
	if !ok {
		return seqObservation{sentAt: sentAt}
	}
	seq, _, _, window, options, ok := tcpFields(data, ihl)
	if !ok {
		return seqObservation{sentAt: sentAt}
	}

	obs := seqObservation{sentAt: sentAt, got: true, isn: seq, ipid: ipid, window: window, options: tcpOptionString(options)}
	if tsval, ok := timestampOption(options); ok {
		obs.hasTS, obs.tsval = true, tsval
	}
	return obs
}

// timestampOption extracts the TSval field from a raw TCP option block, if
// a timestamp option is present.
func timestampOption(options []byte) (uint32, bool) {
	i := 0
	for i < len(options) {
		kind := options[i]
		switch kind {
		case 0:
			return 0, false
		case 1:
			i++
		case 8:
			if i+10 > len(options) {
				return 0, false
			}
			return be32(options[i+2 : i+6]), true
		default:
			if i+1 >= len(options) || options[i+1] < 2 {
				return 0, false
			}
			i += int(options[i+1])
		}
	}
	return 0, false
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// sendTCPTest sends a single TCP probe per the T1-T7/ECN battery and
// classifies the reply into a TCPProbeResponse. No retransmit: only the
// SEQ probes retry per the state machine.
func sendTCPTest(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, dstPort uint16, flags uint8, window uint16, options []byte) TCPProbeResponse {
	srcPort := randomSourcePort()
	probeSeq := rand.Uint32()
	header := packet.TCPHeader{SrcPort: srcPort, DstPort: dstPort, Seq: probeSeq, Flags: flags, Window: window, Options: options}
	tcpSeg := packet.BuildTCP(header, src, dst, nil)
	ipPkt := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoTCP, Src: src, Dst: dst, DontFrag: true}, tcpSeg)

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

	data, _, err := sock.SendAndWait(ctx, dst, ipPkt, m, probeTimeout)
	if err != nil {
		return TCPProbeResponse{}
	}

	ttl, df, _, proto, ihl, ok := ipv4Fields(data)
	if !ok || proto != packet.ProtoTCP {
		return TCPProbeResponse{}
	}
	seq, ack, respFlags, window2, options2, ok := tcpFields(data, ihl)
	if !ok {
		return TCPProbeResponse{}
	}

	return TCPProbeResponse{
		Got:     true,
		DF:      df,
		TTL:     ttl,
		Window:  window2,
		Flags:   respFlags,
		Options: tcpOptionString(options2),
		SeqRel:  classifySeqRel(ack, header.Seq),
		AckRel:  classifyAckRel(seq),
	}
}

// classifySeqRel/classifyAckRel report the coarse "Z/A/A+/O" relationship
// nmap-os-db's S/A fields encode between a probe's own seq/ack and the
// value the target echoed back.
func classifySeqRel(respAck, probeSeq uint32) string {
	switch respAck {
	case 0:
		return "Z"
	case probeSeq:
		return "A"
	case probeSeq + 1:
		return "A+"
	default:
		return "O"
	}
}

func classifyAckRel(respSeq uint32) string {
	if respSeq == 0 {
		return "Z"
	}
	return "O"
}

// sendICMPEcho sends one ICMP echo request and reports the reply's shape,
// the reply's IP ID (the II test's raw material), and its ICMP code.
func sendICMPEcho(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, id, seq uint16, payload []byte, tos uint8, dontFrag bool) (ICMPProbeResponse, uint16, uint8, bool) {
	echo := packet.BuildICMPv4Echo(packet.ICMPEcho{Type: packet.ICMPv4EchoRequest, Identifier: id, Sequence: seq, Payload: payload})
	ipPkt := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoICMP, Src: src, Dst: dst, TOS: tos, DontFrag: dontFrag}, echo)

	m := match.LayersMatch{
		Kind: match.KindLayer4ICMP,
		Layer4ICMP: &match.Layer4MatchICMP{
			Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
			Types:  []uint8{uint8(packet.ICMPv4EchoReply)},
		},
	}

	data, _, err := sock.SendAndWait(ctx, dst, ipPkt, m, probeTimeout)
	if err != nil {
		return ICMPProbeResponse{}, 0, 0, false
	}
	_, df, ipid, _, ihl, ok := ipv4Fields(data)
	if !ok {
		return ICMPProbeResponse{}, 0, 0, false
	}
	typ, code, _, _, _, ok := icmpFields(data, ihl)
	if !ok || typ != packet.ICMPv4EchoReply {
		return ICMPProbeResponse{}, 0, 0, false
	}
	return ICMPProbeResponse{Got: true, DFI: dfClass(df)}, ipid, code, true
}

func dfClass(df bool) string {
	if df {
		return "S" // "same as probe" in nmap's shorthand; this engine only ever probes with DF set
	}
	return "N"
}

// sendUDPClosedProbe sends a UDP datagram at a port expected to be closed
// and reports the ICMP port-unreachable shape (U1).
func sendUDPClosedProbe(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, closedPort uint16) ICMPLikeUDPResponse {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 'C'
	}
	srcPort := randomSourcePort()
	udpSeg := packet.BuildUDP(packet.UDPHeader{SrcPort: srcPort, DstPort: closedPort}, src, dst, payload)
	ipPkt := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoUDP, Src: src, Dst: dst, DontFrag: true}, udpSeg)

	m := match.LayersMatch{
		Kind: match.KindLayer4ICMP,
		Layer4ICMP: &match.Layer4MatchICMP{
			Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: src},
			Types:  []uint8{packet.ICMPv4Unreachable},
			Codes:  []uint8{packet.ICMPv4PortUnreachable},
		},
	}

	data, _, err := sock.SendAndWait(ctx, dst, ipPkt, m, probeTimeout)
	if err != nil {
		return ICMPLikeUDPResponse{}
	}
	ttl, df, _, _, ihl, ok := ipv4Fields(data)
	if !ok {
		return ICMPLikeUDPResponse{}
	}
	_, _, _, _, body, ok := icmpFields(data, ihl)
	if !ok {
		return ICMPLikeUDPResponse{}
	}
	return ICMPLikeUDPResponse{
		Got:    true,
		DF:     df,
		TOS:    0,
		RipTOS: ttl,
		RipCK:  classifyRipCheck(body),
	}
}

// classifyRipCheck reports whether the quoted original datagram embedded in
// an ICMP error still carries a consistent checksum ("G" good, "Z" zero,
// "I" invalid); this engine doesn't deliberately corrupt the probe's own
// checksum the way nmap's U1 variant does, so a complete quote is only
// classed Z or G; "I" is returned when the quote is too short to read.
func classifyRipCheck(icmpBody []byte) string {
	if len(icmpBody) < 20 {
		return "I"
	}
	innerIHL := int(icmpBody[0]&0x0f) * 4
	if len(icmpBody) < innerIHL+8 {
		return "I"
	}
	udpCksum := icmpBody[innerIHL+6 : innerIHL+8]
	if udpCksum[0] == 0 && udpCksum[1] == 0 {
		return "Z"
	}
	return "G"
}
