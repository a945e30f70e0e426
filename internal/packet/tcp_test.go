package packet

import (
	"net"
	"testing"
)

func TestBuildTCPSetsFlagsAndDataOffset(t *testing.T) {
	src := net.ParseIP("192.168.1.10")
	dst := net.ParseIP("192.168.1.20")

	buf := BuildTCP(TCPHeader{
		SrcPort: 54321,
		DstPort: 80,
		Flags:   FlagSYN,
	}, src, dst, nil)

	if len(buf) != 20 {
		t.Fatalf("expected 20-byte header with no options, got %d", len(buf))
	}
	if buf[13] != FlagSYN {
		t.Errorf("flags byte = 0x%02x, want 0x%02x", buf[13], FlagSYN)
	}
	if dataOffset := buf[12] >> 4; dataOffset != 5 {
		t.Errorf("data offset = %d words, want 5", dataOffset)
	}
	if !ValidateChecksum(append(pseudoHeaderV4(to4Array(src), to4Array(dst), ProtoTCP, uint16(len(buf))), buf...)) {
		t.Error("TCP checksum does not validate against its pseudo-header")
	}
}

func TestBuildTCPXmasFlags(t *testing.T) {
	buf := BuildTCP(TCPHeader{
		SrcPort: 1234,
		DstPort: 443,
		Flags:   FlagFIN | FlagPSH | FlagURG,
	}, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), nil)

	want := FlagFIN | FlagPSH | FlagURG
	if buf[13] != want {
		t.Errorf("flags byte = 0x%02x, want 0x%02x", buf[13], want)
	}
}

func TestBuildTCPWithOptionsExtendsHeaderLength(t *testing.T) {
	opts := TCPOptionMSS(1460)
	buf := BuildTCP(TCPHeader{
		SrcPort: 1, DstPort: 2, Flags: FlagSYN, Options: opts,
	}, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"), nil)

	if len(buf) != 24 {
		t.Fatalf("expected 24-byte header (20 + 4-byte MSS option), got %d", len(buf))
	}
	if dataOffset := buf[12] >> 4; dataOffset != 6 {
		t.Errorf("data offset = %d words, want 6", dataOffset)
	}
}
