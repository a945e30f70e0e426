package scan

import (
	"net"
	"testing"
)

func TestNewHostAcceptsGlobalAddress(t *testing.T) {
	h, err := NewHost(net.ParseIP("93.184.216.34"), []uint16{80, 443})
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	if len(h.Ports) != 2 {
		t.Errorf("Ports = %v, want 2 entries", h.Ports)
	}
}

func TestNewHostRejectsIPv6Address(t *testing.T) {
	if _, err := NewHost(net.ParseIP("2001:db8::1"), nil); err == nil {
		t.Error("expected NewHost to reject an IPv6 address")
	}
}

func TestFromSubnetExpandsEveryAddress(t *testing.T) {
	target, err := FromSubnet("192.168.50.0/30", []uint16{22})
	if err != nil {
		t.Fatalf("FromSubnet() error = %v", err)
	}
	// /30 has 4 addresses (.0 network, .1, .2, .3 broadcast); all are
	// non-global so each NewHost call depends on routing availability in
	// the test environment rather than a fixed count, so just check it
	// didn't blow up and produced no more than the subnet's addresses.
	if len(target.Hosts) > 4 {
		t.Errorf("got %d hosts, want at most 4", len(target.Hosts))
	}
	if target.Type != TargetIPv4 {
		t.Errorf("Type = %v, want TargetIPv4", target.Type)
	}
}

func TestFromSubnetRejectsMalformedCIDR(t *testing.T) {
	if _, err := FromSubnet("not-a-cidr", nil); err == nil {
		t.Error("expected error for malformed CIDR")
	}
}
