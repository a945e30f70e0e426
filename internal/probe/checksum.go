package probe

import "github.com/KilimcininKorOglu/trident/internal/packet"

// Checksum calculates the Internet Checksum (RFC 1071) for ICMP, IP, UDP,
// and TCP headers. Delegates to internal/packet so the traceroute probers
// and the scan-engine packet builders share one checksum implementation.
func Checksum(data []byte) uint16 {
	return packet.Checksum(data)
}

// ValidateChecksum verifies that a packet's checksum is correct.
// Returns true if the checksum is valid (sum including checksum equals 0xFFFF).
func ValidateChecksum(data []byte) bool {
	return packet.ValidateChecksum(data)
}
