package packet

import (
	"encoding/binary"
	"net"
)

// IPv6Header mirrors IPv4Header for the IPv6 probe path. IPv6 has no header
// checksum; transport-layer checksums instead cover the pseudo-header built
// from these addresses (see pseudoHeaderV6).
type IPv6Header struct {
	TrafficClass uint8
	FlowLabel    uint32
	HopLimit     uint8 // 0 means hop limit 64
	NextHeader   uint8
	Src          net.IP
	Dst          net.IP
}

// BuildIPv6 serializes header followed by payload into a complete IPv6
// packet.
func BuildIPv6(h IPv6Header, payload []byte) []byte {
	hopLimit := h.HopLimit
	if hopLimit == 0 {
		hopLimit = 64
	}

	buf := make([]byte, 40+len(payload))

	vtf := uint32(6)<<28 | uint32(h.TrafficClass)<<20 | (h.FlowLabel & 0xfffff)
	binary.BigEndian.PutUint32(buf[0:4], vtf)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = h.NextHeader
	buf[7] = hopLimit

	copy(buf[8:24], h.Src.To16())
	copy(buf[24:40], h.Dst.To16())

	copy(buf[40:], payload)

	return buf
}
