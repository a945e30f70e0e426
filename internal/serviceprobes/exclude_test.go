package serviceprobes

import (
	"strings"
	"testing"
)

func TestParseExcludeParsesPortsTCPAndUDPRanges(t *testing.T) {
	ep, err := ParseExclude(strings.NewReader("Exclude 53,T:9100,U:500-502\n"))
	if err != nil {
		t.Fatalf("ParseExclude() error = %v", err)
	}
	if len(ep.Ports) != 1 || ep.Ports[0] != 53 {
		t.Errorf("Ports = %v, want [53]", ep.Ports)
	}
	if len(ep.TCPPorts) != 1 || ep.TCPPorts[0] != 9100 {
		t.Errorf("TCPPorts = %v, want [9100]", ep.TCPPorts)
	}
	want := []uint16{500, 501, 502}
	if len(ep.UDPPorts) != len(want) {
		t.Fatalf("UDPPorts = %v, want %v", ep.UDPPorts, want)
	}
	for i := range want {
		if ep.UDPPorts[i] != want[i] {
			t.Errorf("UDPPorts[%d] = %d, want %d", i, ep.UDPPorts[i], want[i])
		}
	}
}

// TestParseExcludeRangeAfterFirstEntryUsesOwnToken guards the
// variable-shadowing fix: a U: range appearing after an earlier
// comma-separated entry must expand itself, not some other entry in the
// list that happened to come before it.
func TestParseExcludeRangeAfterFirstEntryUsesOwnToken(t *testing.T) {
	ep, err := ParseExclude(strings.NewReader("Exclude 21,T:100-102,U:7000-7002\n"))
	if err != nil {
		t.Fatalf("ParseExclude() error = %v", err)
	}
	wantTCP := []uint16{100, 101, 102}
	wantUDP := []uint16{7000, 7001, 7002}
	if len(ep.TCPPorts) != len(wantTCP) {
		t.Fatalf("TCPPorts = %v, want %v", ep.TCPPorts, wantTCP)
	}
	for i := range wantTCP {
		if ep.TCPPorts[i] != wantTCP[i] {
			t.Errorf("TCPPorts[%d] = %d, want %d", i, ep.TCPPorts[i], wantTCP[i])
		}
	}
	if len(ep.UDPPorts) != len(wantUDP) {
		t.Fatalf("UDPPorts = %v, want %v", ep.UDPPorts, wantUDP)
	}
	for i := range wantUDP {
		if ep.UDPPorts[i] != wantUDP[i] {
			t.Errorf("UDPPorts[%d] = %d, want %d", i, ep.UDPPorts[i], wantUDP[i])
		}
	}
}

func TestParseExcludeNoDirectiveReturnsEmpty(t *testing.T) {
	ep, err := ParseExclude(strings.NewReader("# nothing here\n"))
	if err != nil {
		t.Fatalf("ParseExclude() error = %v", err)
	}
	if len(ep.Ports)+len(ep.TCPPorts)+len(ep.UDPPorts) != 0 {
		t.Errorf("expected empty ExcludePorts, got %+v", ep)
	}
}
