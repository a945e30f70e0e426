// Package resolve turns a user-supplied target string (hostname, IPv4
// literal, or IPv6 literal) into the net.IP values the scan orchestrator
// needs. DNS resolution itself is explicitly out of scope for the probe
// engine (spec's Non-goals exclude a DNS resolver implementation), so this
// is a thin wrapper over net.Resolver rather than a protocol client.
package resolve

import (
	"context"
	"fmt"
	"net"
)

// Host resolves target to its IPv4 and IPv6 addresses. A literal IP address
// is returned as-is without a lookup.
func Host(ctx context.Context, target string) (ipv4 []net.IP, ipv6 []net.IP, err error) {
	if ip := net.ParseIP(target); ip != nil {
		if ip.To4() != nil {
			return []net.IP{ip}, nil, nil
		}
		return nil, []net.IP{ip}, nil
	}

	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip", target)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %q: %w", target, err)
	}
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			ipv4 = append(ipv4, v4)
		} else {
			ipv6 = append(ipv6, a)
		}
	}
	if len(ipv4) == 0 && len(ipv6) == 0 {
		return nil, nil, fmt.Errorf("resolve %q: no addresses found", target)
	}
	return ipv4, ipv6, nil
}

// HostV4 is Host restricted to the IPv4 result, returning an error if
// target has no A record (or isn't an IPv4 literal).
func HostV4(ctx context.Context, target string) (net.IP, error) {
	ipv4, _, err := Host(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(ipv4) == 0 {
		return nil, fmt.Errorf("resolve %q: no IPv4 address found", target)
	}
	return ipv4[0], nil
}
