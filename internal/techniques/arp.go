package techniques

import (
	"context"
	"net"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/KilimcininKorOglu/trident/internal/addr"
	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// ARPProbe sends a broadcast "who-has" for dstIP on the given datalink
// socket and reports liveness: a reply means Up with the sender's MAC
// recorded, a timeout means the host is simply absent from the ARP
// table (no Down/negative signal exists at this layer, unlike ICMP).
func ARPProbe(ctx context.Context, sock *transport.DatalinkSocket, cache *addr.ARPCache, src addr.Source, dstIP net.IP, timeout time.Duration) (result.PingResult, net.HardwareAddr, error) {
	if mac, ok := cache.Lookup(dstIP); ok {
		return result.PingResult{Addr: dstIP, Status: result.Up}, mac, nil
	}

	frame, err := packet.BuildARPRequest(src.MAC, src.Addr, dstIP)
	if err != nil {
		return result.PingResult{}, nil, err
	}

	ethType := layers.EthernetTypeARP
	m := match.LayersMatch{
		Kind: match.KindLayer2,
		Layer2: &match.Layer2Match{
			EtherType: &ethType,
			DstMAC:    src.MAC,
		},
	}

	data, _, err := sock.SendAndWait(ctx, frame, m, timeout)
	if err != nil {
		if err == result.ErrNoResponse {
			return result.PingResult{Addr: dstIP, Status: result.Down}, nil, nil
		}
		return result.PingResult{}, nil, err
	}

	mac, senderIP, ok := packet.ParseARPReply(data)
	if !ok || !senderIP.Equal(dstIP) {
		return result.PingResult{Addr: dstIP, Status: result.Down}, nil, nil
	}

	cache.Store(dstIP, mac)
	return result.PingResult{Addr: dstIP, Status: result.Up}, mac, nil
}
