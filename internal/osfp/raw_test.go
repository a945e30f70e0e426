package osfp

import (
	"net"
	"testing"

	"github.com/KilimcininKorOglu/trident/internal/packet"
)

func TestIPv4FieldsAndTCPFieldsRoundTripBuiltPacket(t *testing.T) {
	src, dst := net.ParseIP("192.0.2.1"), net.ParseIP("192.0.2.2")
	options := padOptions(packet.TCPOptionMSS(1460), packet.TCPOptionSACKPermitted())

	tcpSeg := packet.BuildTCP(packet.TCPHeader{
		SrcPort: 40000, DstPort: 80, Seq: 12345, Ack: 0,
		Flags: packet.FlagSYN, Window: 1024, Options: options,
	}, src, dst, nil)
	ipPkt := packet.BuildIPv4(packet.IPv4Header{
		Protocol: packet.ProtoTCP, Src: src, Dst: dst, TTL: 55, DontFrag: true,
	}, tcpSeg)

	ttl, df, _, proto, ihl, ok := ipv4Fields(ipPkt)
	if !ok {
		t.Fatal("ipv4Fields() ok = false")
	}
	if ttl != 55 {
		t.Errorf("TTL = %d, want 55", ttl)
	}
	if !df {
		t.Error("expected DF set")
	}
	if proto != packet.ProtoTCP {
		t.Errorf("proto = %d, want %d", proto, packet.ProtoTCP)
	}

	seq, _, flags, window, gotOptions, ok := tcpFields(ipPkt, ihl)
	if !ok {
		t.Fatal("tcpFields() ok = false")
	}
	if seq != 12345 {
		t.Errorf("seq = %d, want 12345", seq)
	}
	if flags != packet.FlagSYN {
		t.Errorf("flags = %#x, want SYN", flags)
	}
	if window != 1024 {
		t.Errorf("window = %d, want 1024", window)
	}
	if len(gotOptions) != len(options) {
		t.Errorf("len(options) = %d, want %d", len(gotOptions), len(options))
	}
}

func TestTCPOptionStringRendersKnownKinds(t *testing.T) {
	options := padOptions(packet.TCPOptionMSS(1460), packet.TCPOptionWindowScale(7), packet.TCPOptionSACKPermitted())
	got := tcpOptionString(options)
	if got == "" {
		t.Fatal("expected a non-empty option string")
	}
	if got[0] != 'M' {
		t.Errorf("tcpOptionString() = %q, want it to start with M (MSS)", got)
	}
}

func TestIPv4FieldsRejectsTooShort(t *testing.T) {
	if _, _, _, _, _, ok := ipv4Fields([]byte{0x45, 0, 0}); ok {
		t.Error("expected ok = false for a truncated header")
	}
}
