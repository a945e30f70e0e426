package packet

import (
	"encoding/binary"
	"math/rand"
	"net"
)

// IPv4 protocol numbers referenced by the technique layer. Naming these
// locally (rather than reaching for a placeholder) resolves the open
// question in the original pistol source, where the TCP scan's IPv4 header
// protocol field was stamped with an unrelated IpNextHeaderProtocols::Test1
// constant instead of the real TCP protocol number; every builder in this
// package uses the correct IANA protocol number.
const (
	ProtoICMP   = 1
	ProtoTCP    = 6
	ProtoUDP    = 17
	ProtoICMPv6 = 58
)

// IPv4Header describes the fields a technique needs control over when
// crafting a probe. ID and TTL left zero get the defaults probes commonly
// use (random ID, TTL 64); DF is set only when DontFrag is true.
type IPv4Header struct {
	TOS      uint8
	ID       uint16 // 0 means "generate a random ID"
	DontFrag bool
	TTL      uint8 // 0 means TTL 64
	Protocol uint8
	Src      net.IP
	Dst      net.IP
}

// BuildIPv4 serializes header followed by payload into a complete IPv4
// packet with a correct header checksum. Options are never emitted; no
// probe technique in this toolkit needs them on the IP layer.
func BuildIPv4(h IPv4Header, payload []byte) []byte {
	ttl := h.TTL
	if ttl == 0 {
		ttl = 64
	}
	id := h.ID
	if id == 0 {
		id = uint16(rand.Intn(0xffff) + 1)
	}

	totalLen := 20 + len(payload)
	buf := make([]byte, totalLen)

	buf[0] = 0x45 // version 4, IHL 5
	buf[1] = h.TOS
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], id)

	var flagsFrag uint16
	if h.DontFrag {
		flagsFrag |= 0x4000
	}
	binary.BigEndian.PutUint16(buf[6:8], flagsFrag)

	buf[8] = ttl
	buf[9] = h.Protocol
	// checksum at 10:12, zeroed for calculation

	src4 := h.Src.To4()
	dst4 := h.Dst.To4()
	copy(buf[12:16], src4)
	copy(buf[16:20], dst4)

	copy(buf[20:], payload)

	cksum := Checksum(buf[:20])
	binary.BigEndian.PutUint16(buf[10:12], cksum)

	return buf
}

// to4Array/to16Array convert a net.IP to the [4]byte/[16]byte form the
// pseudo-header builders need.
func to4Array(ip net.IP) [4]byte {
	var a [4]byte
	copy(a[:], ip.To4())
	return a
}

func to16Array(ip net.IP) [16]byte {
	var a [16]byte
	copy(a[:], ip.To16())
	return a
}
