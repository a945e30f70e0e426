package techniques

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// Zombie names the idle-scan side channel: a host whose IP-ID sequence
// increments predictably and which is otherwise quiet for the duration of
// the probe window (spec concurrency note: "model this as a serialized
// section per zombie").
type Zombie struct {
	IP net.IP
}

// IdleScan brackets a spoofed SYN to dst (forged with src=zombie.IP) between
// two SYN probes sent to the zombie itself, using the zombie's IP-ID
// progression as the side channel: a delta of 2 or more means the
// forged SYN drew a SYN|ACK from dst (the zombie's RST in reply to it
// advanced the zombie's IP-ID), a delta of 0 or 1 means Closed, and an
// inconsistent pair of zombie probes (e.g. the second probe timing out)
// means Filtered.
func IdleScan(ctx context.Context, sock *transport.Layer3Socket, src, zombieIP, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, result.IdleScanResult, error) {
	idBefore, err := probeZombieIPID(ctx, sock, src, zombieIP, timeout)
	if err != nil {
		return result.Filtered, result.IdleScanResult{}, err
	}

	if err := sendSpoofedSYN(ctx, sock, zombieIP, dst, dstPort, timeout); err != nil {
		return result.Filtered, result.IdleScanResult{}, err
	}

	idAfter, err := probeZombieIPID(ctx, sock, src, zombieIP, timeout)
	if err != nil {
		return result.Filtered, result.IdleScanResult{ZombieIPIDBefore: idBefore}, err
	}

	ir := result.IdleScanResult{ZombieIPIDBefore: idBefore, ZombieIPIDAfter: idAfter}
	switch {
	case ir.Delta() >= 2:
		return result.Open, ir, nil
	case ir.Delta() <= 1:
		return result.Closed, ir, nil
	default:
		return result.Filtered, ir, nil
	}
}

// probeZombieIPID sends a SYN|ACK to the zombie (an unsolicited SYN|ACK
// draws a RST whose IP-ID reveals the zombie's current counter) and
// returns the IP-ID observed in the reply.
func probeZombieIPID(ctx context.Context, sock *transport.Layer3Socket, src, zombieIP net.IP, timeout time.Duration) (uint16, error) {
	srcPort := randomSourcePort()
	tcpHeader := packet.BuildTCP(packet.TCPHeader{
		SrcPort: srcPort,
		DstPort: 80,
		Flags:   packet.FlagSYN | packet.FlagACK,
	}, src, zombieIP, nil)
	ipPacket := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoTCP, Src: src, Dst: zombieIP, DontFrag: true}, tcpHeader)

	sp := srcPort
	m := match.LayersMatch{
		Kind: match.KindLayer4TCPUDP,
		Layer4TCPUD: &match.Layer4MatchTCPUDP{
			Layer3:  &match.Layer3Match{SrcAddr: zombieIP, DstAddr: src},
			DstPort: &sp,
		},
	}

	data, _, err := sock.SendAndWait(ctx, zombieIP, ipPacket, m, timeout)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(data[4:6]), nil
}

// sendSpoofedSYN sends a SYN to dst with the zombie's address forged into
// the IPv4 source field, so any reply goes to the zombie rather than us.
func sendSpoofedSYN(ctx context.Context, sock *transport.Layer3Socket, zombieIP, dst net.IP, dstPort uint16, timeout time.Duration) error {
	srcPort := randomSourcePort()
	tcpHeader := packet.BuildTCP(packet.TCPHeader{
		SrcPort: srcPort,
		DstPort: dstPort,
		Flags:   packet.FlagSYN,
	}, zombieIP, dst, nil)
	ipPacket := packet.BuildIPv4(packet.IPv4Header{Protocol: packet.ProtoTCP, Src: zombieIP, Dst: dst, DontFrag: true}, tcpHeader)

	// There is no reply to wait for here (the SYN|ACK/RST goes to the
	// zombie, not us); send via the socket's retry-bounded send path, let
	// SendAndWait wait out the caller's timeout, and discard ErrNoResponse,
	// the expected outcome.
	m := match.LayersMatch{Kind: match.KindLayer3, Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: zombieIP}}
	_, _, err := sock.SendAndWait(ctx, dst, ipPacket, m, timeout)
	if err == result.ErrNoResponse {
		return nil
	}
	return err
}
