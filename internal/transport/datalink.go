package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/result"
)

// DatalinkSocket sends and receives whole Ethernet frames via libpcap, used
// by techniques that need control of layer 2 itself: ARP discovery (the
// idle-scan zombie IP-ID poll goes through Layer3Socket). Grounded in the GoNetWatch discovery
// scanner's pcap.OpenLive/WritePacketData usage.
type DatalinkSocket struct {
	handle *pcap.Handle
}

// OpenDatalinkSocket opens ifaceName in promiscuous mode with a short
// capture timeout so reads return promptly for SendAndWait's deadline
// loop.
func OpenDatalinkSocket(ifaceName string) (*DatalinkSocket, error) {
	handle, err := pcap.OpenLive(ifaceName, 65535, true, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrInsufficientPrivilege, err)
	}
	return &DatalinkSocket{handle: handle}, nil
}

// Close releases the pcap handle.
func (s *DatalinkSocket) Close() {
	s.handle.Close()
}

// SendAndWait writes frameBytes (a complete Ethernet frame) and polls
// captured frames until one matches m, ctx is cancelled, or timeout
// elapses.
func (s *DatalinkSocket) SendAndWait(ctx context.Context, frameBytes []byte, m match.LayersMatch, timeout time.Duration) ([]byte, *time.Duration, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if err := s.handle.WritePacketData(frameBytes); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", result.ErrTransmissionFailed, err)
	}

	sendTime := time.Now()
	deadline := sendTime.Add(timeout)

	src := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	packets := src.Packets()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil, result.ErrNoResponse
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(remaining):
			return nil, nil, result.ErrNoResponse
		case pkt, ok := <-packets:
			if !ok {
				return nil, nil, result.ErrNoResponse
			}
			parsed, ok := match.ParseEthernet(pkt.Data())
			if !ok {
				continue
			}
			if match.Match(m, parsed) {
				rtt := time.Since(sendTime)
				return pkt.Data(), &rtt, nil
			}
		}
	}
}
