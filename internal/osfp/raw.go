package osfp

import "encoding/binary"

// ipv4Fields pulls the header fields the probe battery inspects out of a
// raw IPv4 datagram: TTL, don't-fragment, IP ID, protocol, and the header
// length needed to locate the payload. ok is false for anything too short
// to be a valid IPv4 header.
func ipv4Fields(data []byte) (ttl uint8, df bool, id uint16, proto uint8, ihl int, ok bool) {
	if len(data) < 20 || data[0]>>4 != 4 {
		return 0, false, 0, 0, 0, false
	}
	ihl = int(data[0]&0x0f) * 4
	if len(data) < ihl {
		return 0, false, 0, 0, 0, false
	}
	id = binary.BigEndian.Uint16(data[4:6])
	flags := binary.BigEndian.Uint16(data[6:8])
	df = flags&0x4000 != 0
	ttl = data[8]
	proto = data[9]
	return ttl, df, id, proto, ihl, true
}

// tcpFields pulls seq, ack, flags, window, and the raw options bytes out of
// the TCP segment starting at ihl within data.
func tcpFields(data []byte, ihl int) (seq, ack uint32, flags uint8, window uint16, options []byte, ok bool) {
	if len(data) < ihl+20 {
		return 0, 0, 0, 0, nil, false
	}
	seg := data[ihl:]
	seq = binary.BigEndian.Uint32(seg[4:8])
	ack = binary.BigEndian.Uint32(seg[8:12])
	dataOff := int(seg[12]>>4) * 4
	flags = seg[13]
	window = binary.BigEndian.Uint16(seg[14:16])
	if dataOff > 20 && len(seg) >= dataOff {
		options = seg[20:dataOff]
	}
	return seq, ack, flags, window, options, true
}

// icmpFields pulls type, code, identifier, sequence and payload out of the
// ICMP message starting at ihl within data. Echo request/reply carry
// identifier/sequence at the same offset as the original ping payload;
// unreachable messages carry the originating packet's header as payload,
// which the U1 classifier reads back out of.
func icmpFields(data []byte, ihl int) (typ, code uint8, id, seq uint16, payload []byte, ok bool) {
	if len(data) < ihl+8 {
		return 0, 0, 0, 0, nil, false
	}
	msg := data[ihl:]
	typ, code = msg[0], msg[1]
	id = binary.BigEndian.Uint16(msg[4:6])
	seq = binary.BigEndian.Uint16(msg[6:8])
	if len(msg) > 8 {
		payload = msg[8:]
	}
	return typ, code, id, seq, payload, true
}

// tcpOptionString renders a raw TCP option byte block into nmap-os-db's
// option-string notation: one letter per option in wire order (M = MSS,
// W = window scale, T = timestamp, S = SACK-permitted, N = NOP), with the
// MSS/window-scale values appended the way nmap's O1-O6 fields record them
// (e.g. "M5B4NW3NNT"; timestamp options carry no value digits). Unknown
// option kinds are skipped rather than
// aborting the whole string, since a partially-decoded option list is still
// useful signal.
func tcpOptionString(options []byte) string {
	var out []byte
	i := 0
	for i < len(options) {
		kind := options[i]
		switch kind {
		case 0:
			i = len(options)
		case 1:
			out = append(out, 'N')
			i++
		case 2:
			if i+4 > len(options) {
				i = len(options)
				break
			}
			mss := binary.BigEndian.Uint16(options[i+2 : i+4])
			out = append(out, 'M')
			out = appendHex(out, uint32(mss))
			i += 4
		case 3:
			if i+3 > len(options) {
				i = len(options)
				break
			}
			out = append(out, 'W')
			out = appendHex(out, uint32(options[i+2]))
			i += 3
		case 4:
			out = append(out, 'S')
			length := int(options[i+1])
			if length < 2 {
				length = 2
			}
			i += length
		case 8:
			out = append(out, 'T')
			i += int(options[i+1])
			if i > len(options) {
				i = len(options)
			}
		default:
			if i+1 >= len(options) || options[i+1] == 0 {
				i = len(options)
				break
			}
			i += int(options[i+1])
		}
	}
	return string(out)
}

func appendHex(dst []byte, v uint32) []byte {
	const digits = "0123456789ABCDEF"
	if v == 0 {
		return append(dst, '0')
	}
	var tmp [8]byte
	n := 0
	for v > 0 {
		tmp[n] = digits[v&0xf]
		v >>= 4
		n++
	}
	for n > 0 {
		n--
		dst = append(dst, tmp[n])
	}
	return dst
}
