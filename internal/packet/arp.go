package packet

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// broadcastMAC is the Ethernet broadcast address ARP requests go out to.
var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// BuildARPRequest serializes an Ethernet frame carrying an ARP "who-has"
// request for dstIP, sent from srcMAC/srcIP. Framing is delegated to
// gopacket/layers rather than hand-packed, the way the GoNetWatch discovery
// scanner builds its ARP probes.
func BuildARPRequest(srcMAC net.HardwareAddr, srcIP net.IP, dstIP net.IP) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(dstIP.To4()),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &eth, &arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseARPReply extracts the sender MAC/IP from a received Ethernet+ARP
// frame, returning ok=false if the frame is not an ARP reply.
func ParseARPReply(data []byte) (senderMAC net.HardwareAddr, senderIP net.IP, ok bool) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return nil, nil, false
	}
	arp := arpLayer.(*layers.ARP)
	if arp.Operation != layers.ARPReply {
		return nil, nil, false
	}
	mac := make(net.HardwareAddr, len(arp.SourceHwAddress))
	copy(mac, arp.SourceHwAddress)
	ip := make(net.IP, len(arp.SourceProtAddress))
	copy(ip, arp.SourceProtAddress)
	return mac, ip, true
}
