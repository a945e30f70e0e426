package packet

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestBuildARPRequestIsWellFormed(t *testing.T) {
	srcMAC := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	srcIP := net.ParseIP("192.168.1.2")
	dstIP := net.ParseIP("192.168.1.1")

	data, err := BuildARPRequest(srcMAC, srcIP, dstIP)
	if err != nil {
		t.Fatalf("BuildARPRequest: %v", err)
	}

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		t.Fatal("serialized frame has no ARP layer")
	}
	arp := arpLayer.(*layers.ARP)
	if arp.Operation != layers.ARPRequest {
		t.Errorf("Operation = %v, want ARPRequest", arp.Operation)
	}
	if net.IP(arp.DstProtAddress).String() != dstIP.String() {
		t.Errorf("DstProtAddress = %v, want %v", net.IP(arp.DstProtAddress), dstIP)
	}
}

func TestParseARPReplyRejectsRequest(t *testing.T) {
	srcMAC := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	data, err := BuildARPRequest(srcMAC, net.ParseIP("10.0.0.1"), net.ParseIP("10.0.0.2"))
	if err != nil {
		t.Fatalf("BuildARPRequest: %v", err)
	}
	if _, _, ok := ParseARPReply(data); ok {
		t.Error("ParseARPReply should reject an ARP request frame")
	}
}
