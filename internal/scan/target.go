// Package scan implements the scan orchestrator (C6) and the Target/Host
// construction it dispatches over, supplementing the distilled spec with
// the original pistol-rs Target/Host/Host6 model (original_source/src/lib.rs)
// since the orchestrator needs something concrete to iterate over.
package scan

import (
	"fmt"
	"net"

	"github.com/KilimcininKorOglu/trident/internal/addr"
	"github.com/KilimcininKorOglu/trident/internal/result"
)

// Host is one IPv4 destination and the ports a scan should cover for it.
// Construction validates the address per the invariant in the project's
// addressing notes: a non-global address is only a legal target if some
// local interface actually routes to it (e.g. a private-LAN scan).
type Host struct {
	Addr  net.IP
	Ports []uint16
}

// NewHost validates addr and builds a Host. ports may be nil/empty for
// techniques that don't need one (ARP, ICMP ping, IP-protocol scan).
func NewHost(ip net.IP, ports []uint16) (Host, error) {
	if ip.To4() == nil {
		return Host{}, fmt.Errorf("%w: not an IPv4 address: %s", result.ErrIllegalTarget, ip)
	}
	if !addr.IsGlobal(ip) {
		src, err := addr.FindSource(ip)
		if err != nil {
			return Host{}, err
		}
		if src == nil {
			return Host{}, fmt.Errorf("%w: %s", result.ErrIllegalTarget, ip)
		}
	}
	return Host{Addr: ip, Ports: ports}, nil
}

// Host6 is the IPv6 counterpart of Host.
type Host6 struct {
	Addr  net.IP
	Ports []uint16
}

// NewHost6 validates addr and builds a Host6.
func NewHost6(ip net.IP, ports []uint16) (Host6, error) {
	if ip.To4() != nil || ip.To16() == nil {
		return Host6{}, fmt.Errorf("%w: not an IPv6 address: %s", result.ErrIllegalTarget, ip)
	}
	if !addr.IsGlobal(ip) {
		src, err := addr.FindSource(ip)
		if err != nil {
			return Host6{}, err
		}
		if src == nil {
			return Host6{}, fmt.Errorf("%w: %s", result.ErrIllegalTarget, ip)
		}
	}
	return Host6{Addr: ip, Ports: ports}, nil
}

// TargetType distinguishes an IPv4 from an IPv6 target set; a Target never
// mixes both the way the original Rust implementation's enum precluded it.
type TargetType int

const (
	TargetIPv4 TargetType = iota
	TargetIPv6
)

// Target is the unit the scan orchestrator is handed: one or more hosts of
// a single address family.
type Target struct {
	Type   TargetType
	Hosts  []Host
	Hosts6 []Host6
}

// NewTarget builds an IPv4 target from already-validated hosts.
func NewTarget(hosts []Host) Target {
	return Target{Type: TargetIPv4, Hosts: hosts}
}

// NewTarget6 builds an IPv6 target from already-validated hosts.
func NewTarget6(hosts6 []Host6) Target {
	return Target{Type: TargetIPv6, Hosts6: hosts6}
}

// FromSubnet expands a CIDR block (e.g. "192.168.1.0/24") into a Target
// covering every address in it that NewHost accepts, all sharing the same
// port list. Network and broadcast addresses are not treated specially.
func FromSubnet(cidr string, ports []uint16) (Target, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return Target{}, fmt.Errorf("invalid subnet %q: %w", cidr, err)
	}

	var hosts []Host
	for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); incIP(cur) {
		dup := make(net.IP, len(cur))
		copy(dup, cur)
		h, err := NewHost(dup, ports)
		if err != nil {
			continue // addresses NewHost rejects (non-global with no routing interface) are skipped, not fatal
		}
		hosts = append(hosts, h)
	}
	return NewTarget(hosts), nil
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}
