package packet

import (
	"encoding/binary"
	"math/rand"
	"net"
)

// TCP control bits, named individually so technique code can compose the
// exact flag combinations nmap-style scans require (SYN; FIN; NULL = none;
// Xmas = FIN|PSH|URG; ACK; custom probes for OS fingerprinting).
const (
	FlagFIN uint8 = 1 << 0
	FlagSYN uint8 = 1 << 1
	FlagRST uint8 = 1 << 2
	FlagPSH uint8 = 1 << 3
	FlagACK uint8 = 1 << 4
	FlagURG uint8 = 1 << 5
	FlagECE uint8 = 1 << 6
	FlagCWR uint8 = 1 << 7
)

// TCPHeader describes one TCP segment to build. SrcPort/DstPort/Flags are
// mandatory; Seq/Ack/Window/Options default to technique-appropriate values
// when left zero (a random ISN, a non-zero probe window, no options).
type TCPHeader struct {
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint8
	Window  uint16 // 0 means 1024, the default probe window
	Options []byte // must already be padded to a multiple of 4 bytes
}

// BuildTCP serializes a TCP segment (header + options + payload) and fills
// in the checksum using the IPv4 or IPv6 pseudo-header depending on which
// of src/dst parses as v4.
func BuildTCP(h TCPHeader, src, dst net.IP, payload []byte) []byte {
	window := h.Window
	if window == 0 {
		window = 1024
	}
	seq := h.Seq
	if seq == 0 {
		seq = rand.Uint32()
	}

	headerLen := 20 + len(h.Options)
	dataOffsetWords := headerLen / 4

	buf := make([]byte, headerLen+len(payload))

	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], h.Ack)
	buf[12] = byte(dataOffsetWords << 4)
	buf[13] = h.Flags
	binary.BigEndian.PutUint16(buf[14:16], window)
	// checksum at 16:18, zeroed for calculation
	binary.BigEndian.PutUint16(buf[18:20], 0) // urgent pointer

	if len(h.Options) > 0 {
		copy(buf[20:headerLen], h.Options)
	}
	if len(payload) > 0 {
		copy(buf[headerLen:], payload)
	}

	var pseudo []byte
	if ip4 := dst.To4(); ip4 != nil && src.To4() != nil {
		pseudo = pseudoHeaderV4(to4Array(src), to4Array(dst), ProtoTCP, uint16(len(buf)))
	} else {
		pseudo = pseudoHeaderV6(to16Array(src), to16Array(dst), ProtoTCP, uint32(len(buf)))
	}

	cksum := Checksum(append(pseudo, buf...))
	binary.BigEndian.PutUint16(buf[16:18], cksum)

	return buf
}

// TCPOptionMSS builds a 4-byte maximum-segment-size option, the option most
// OS-fingerprint TCP probes (T2-T7, SEQ1-6) set to distinguish stacks.
func TCPOptionMSS(mss uint16) []byte {
	b := make([]byte, 4)
	b[0] = 2 // kind: MSS
	b[1] = 4 // length
	binary.BigEndian.PutUint16(b[2:4], mss)
	return b
}

// TCPOptionWindowScale builds a 3-byte window-scale option padded with one
// NOP to keep the option block 4-byte aligned when used alone.
func TCPOptionWindowScale(shift uint8) []byte {
	return []byte{1, 3, 3, shift}
}

// TCPOptionSACKPermitted builds the 2-byte SACK-permitted option padded
// with two NOPs.
func TCPOptionSACKPermitted() []byte {
	return []byte{1, 1, 4, 2}
}

// TCPOptionTimestamp builds the 10-byte timestamp option padded with two
// NOPs to stay 4-byte aligned.
func TCPOptionTimestamp(tsVal, tsEcr uint32) []byte {
	b := make([]byte, 12)
	b[0], b[1] = 1, 1 // two NOPs
	b[2] = 8          // kind: timestamp
	b[3] = 10         // length
	binary.BigEndian.PutUint32(b[4:8], tsVal)
	binary.BigEndian.PutUint32(b[8:12], tsEcr)
	return b
}
