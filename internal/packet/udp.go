package packet

import (
	"encoding/binary"
	"net"
)

// UDPHeader describes one UDP datagram header.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
}

// BuildUDP serializes a UDP datagram with its checksum filled in. The
// checksum is mandatory here even for IPv4 (where the protocol allows
// disabling it) since several closed-port UDP probes rely on it to reach
// the remote stack's UDP input path rather than being dropped early.
func BuildUDP(h UDPHeader, src, dst net.IP, payload []byte) []byte {
	length := 8 + len(payload)
	buf := make([]byte, length)

	binary.BigEndian.PutUint16(buf[0:2], h.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], h.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(length))
	// checksum at 6:8, zeroed for calculation
	copy(buf[8:], payload)

	var pseudo []byte
	if dst.To4() != nil && src.To4() != nil {
		pseudo = pseudoHeaderV4(to4Array(src), to4Array(dst), ProtoUDP, uint16(length))
	} else {
		pseudo = pseudoHeaderV6(to16Array(src), to16Array(dst), ProtoUDP, uint32(length))
	}

	cksum := Checksum(append(pseudo, buf...))
	if cksum == 0 {
		cksum = 0xffff // RFC 768: a computed zero is transmitted as all-ones
	}
	binary.BigEndian.PutUint16(buf[6:8], cksum)

	return buf
}
