// Package addr resolves local source addresses and interfaces toward a
// destination, and classifies addresses as global or link-local/private
// (C1, spec §4.1).
package addr

import (
	"net"
)

// private IPv4 ranges per RFC 1918, mirrored from the original pistol
// implementation's is_global_x (original_source/src/lib.rs).
var privateIPv4Blocks = []*net.IPNet{
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

// IsGlobal reports whether addr is routable on the public Internet, i.e.
// not an RFC 1918 private IPv4 block and not an IPv6 link-local address
// (fe80::/10). This matches the original_source pistol crate's
// is_global_x helper, kept as a fixed-range check rather than reaching for
// Go's experimental netip global-address predicates.
func IsGlobal(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		for _, b := range privateIPv4Blocks {
			if b.Contains(ip4) {
				return false
			}
		}
		return true
	}
	// IPv6: fe80::/10 link-local.
	return !ip.IsLinkLocalUnicast()
}

// Source describes the local interface and address chosen to reach a
// destination.
type Source struct {
	Iface *net.Interface
	Addr  net.IP
	MAC   net.HardwareAddr
}

// FindSource selects an up, non-loopback interface with an address of the
// same family as dst, preferring one whose subnet contains dst and
// otherwise any interface with a global address (§4.1).
func FindSource(dst net.IP) (*Source, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	isV4 := dst.To4() != nil
	var fallback *Source

	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ipIsV4 := ipNet.IP.To4() != nil
			if ipIsV4 != isV4 {
				continue
			}
			src := &Source{Iface: &iface, Addr: ipNet.IP, MAC: iface.HardwareAddr}
			if ipNet.Contains(dst) {
				return src, nil
			}
			if fallback == nil && IsGlobal(ipNet.IP) {
				fallback = src
			}
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, nil
}
