package packet

import (
	"encoding/binary"
	"time"
)

// ICMPv4 and ICMPv6 message types used by the ping and OS-fingerprint
// techniques, carried over from the teacher's probe.ICMPPacket constants.
const (
	ICMPv4EchoReply           = 0
	ICMPv4Unreachable         = 3
	ICMPv4EchoRequest         = 8
	ICMPv4TimeExceeded        = 11
	ICMPv4ParameterProblem    = 12

	ICMPv4PortUnreachable = 3 // code within ICMPv4Unreachable

	ICMPv6Unreachable  = 1
	ICMPv6TimeExceeded = 3
	ICMPv6EchoRequest  = 128
	ICMPv6EchoReply    = 129
)

// ICMPEcho describes an echo request/reply. IPv6 carries its checksum over
// a pseudo-header like TCP/UDP, so BuildICMPv6Echo needs src/dst; IPv4's
// ICMP checksum is self-contained.
type ICMPEcho struct {
	Type       uint8
	Code       uint8
	Identifier uint16
	Sequence   uint16
	Payload    []byte
}

// BuildICMPv4Echo serializes an ICMPv4 echo message with its checksum.
func BuildICMPv4Echo(e ICMPEcho) []byte {
	buf := make([]byte, 8+len(e.Payload))
	buf[0] = e.Type
	buf[1] = e.Code
	binary.BigEndian.PutUint16(buf[4:6], e.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], e.Sequence)
	copy(buf[8:], e.Payload)

	cksum := Checksum(buf)
	binary.BigEndian.PutUint16(buf[2:4], cksum)
	return buf
}

// BuildICMPv6Echo serializes an ICMPv6 echo message. src/dst feed the
// pseudo-header checksum per RFC 4443 §2.3.
func BuildICMPv6Echo(e ICMPEcho, src, dst [16]byte) []byte {
	buf := make([]byte, 8+len(e.Payload))
	buf[0] = e.Type
	buf[1] = e.Code
	binary.BigEndian.PutUint16(buf[4:6], e.Identifier)
	binary.BigEndian.PutUint16(buf[6:8], e.Sequence)
	copy(buf[8:], e.Payload)

	pseudo := pseudoHeaderV6(src, dst, ProtoICMPv6, uint32(len(buf)))
	cksum := Checksum(append(pseudo, buf...))
	binary.BigEndian.PutUint16(buf[2:4], cksum)
	return buf
}

// TimestampPayload builds an echo payload whose first 8 bytes carry the
// current time, letting the receive path compute RTT and reject stale or
// duplicate replies without a separate sequence table. Mirrors the
// teacher's probe.TimestampPayload.
func TimestampPayload(extra []byte) []byte {
	payload := make([]byte, 8+len(extra))
	binary.BigEndian.PutUint64(payload[0:8], uint64(time.Now().UnixNano()))
	copy(payload[8:], extra)
	return payload
}

// ExtractTimestamp recovers the timestamp embedded by TimestampPayload.
func ExtractTimestamp(payload []byte) (time.Time, bool) {
	if len(payload) < 8 {
		return time.Time{}, false
	}
	nanos := binary.BigEndian.Uint64(payload[0:8])
	return time.Unix(0, int64(nanos)), true
}
