package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
)

func TestOpenLayer3SocketSendAndWaitICMP(t *testing.T) {
	if !canOpenRawIPSocket() {
		t.Skip("Skipping: requires elevated privileges")
	}

	sock, err := OpenLayer3Socket(IPv4)
	if err != nil {
		t.Fatalf("OpenLayer3Socket() error = %v", err)
	}
	defer sock.Close()

	dst := net.ParseIP("127.0.0.1")
	icmpPayload := packet.BuildICMPv4Echo(packet.ICMPEcho{
		Type:       packet.ICMPv4EchoRequest,
		Identifier: 1,
		Sequence:   1,
		Payload:    packet.TimestampPayload(nil),
	})
	ipPacket := packet.BuildIPv4(packet.IPv4Header{
		Protocol: packet.ProtoICMP,
		Src:      dst,
		Dst:      dst,
	}, icmpPayload)

	m := match.LayersMatch{
		Kind: match.KindLayer4ICMP,
		Layer4ICMP: &match.Layer4MatchICMP{
			Layer3: &match.Layer3Match{SrcAddr: dst, DstAddr: dst},
			Types:  []uint8{packet.ICMPv4EchoReply},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, rtt, err := sock.SendAndWait(ctx, dst, ipPacket, m, time.Second)
	if err != nil {
		t.Fatalf("SendAndWait() error = %v", err)
	}
	if rtt == nil {
		t.Error("expected non-nil RTT on a matched reply")
	}
}

func canOpenRawIPSocket() bool {
	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
