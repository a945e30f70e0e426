package techniques

import (
	"testing"

	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/result"
)

func TestClassifySYN(t *testing.T) {
	tests := []struct {
		name string
		obs  tcpObservation
		icmp bool
		want result.PortStatus
	}{
		{"syn-ack is open", tcpObservation{gotTCP: true, tcpFlags: packet.FlagSYN | packet.FlagACK}, false, result.Open},
		{"rst is closed", tcpObservation{gotTCP: true, tcpFlags: packet.FlagRST}, false, result.Closed},
		{"silence is filtered", tcpObservation{}, false, result.Filtered},
		{"icmp unreachable is filtered", tcpObservation{}, true, result.Filtered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifySYN(tt.obs, tt.icmp); got != tt.want {
				t.Errorf("classifySYN() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyFinNullXmasMaimon(t *testing.T) {
	tests := []struct {
		name string
		obs  tcpObservation
		icmp bool
		want result.PortStatus
	}{
		{"silence is open or filtered", tcpObservation{}, false, result.OpenOrFiltered},
		{"rst is closed", tcpObservation{gotTCP: true, tcpFlags: packet.FlagRST}, false, result.Closed},
		{"icmp unreachable is filtered", tcpObservation{}, true, result.Filtered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFinNullXmasMaimon(tt.obs, tt.icmp); got != tt.want {
				t.Errorf("classifyFinNullXmasMaimon() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyACK(t *testing.T) {
	if got := classifyACK(tcpObservation{gotTCP: true, tcpFlags: packet.FlagRST}, false); got != result.Unfiltered {
		t.Errorf("RST = %v, want Unfiltered", got)
	}
	if got := classifyACK(tcpObservation{}, false); got != result.Filtered {
		t.Errorf("silence = %v, want Filtered", got)
	}
}

func TestClassifyWindow(t *testing.T) {
	tests := []struct {
		name string
		obs  tcpObservation
		want result.PortStatus
	}{
		{"rst with nonzero window is open", tcpObservation{gotTCP: true, tcpFlags: packet.FlagRST, tcpWindow: 512}, result.Open},
		{"rst with zero window is closed", tcpObservation{gotTCP: true, tcpFlags: packet.FlagRST, tcpWindow: 0}, result.Closed},
		{"silence is filtered", tcpObservation{}, result.Filtered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyWindow(tt.obs, false); got != tt.want {
				t.Errorf("classifyWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTCPFlagsFromRaw(t *testing.T) {
	ip := make([]byte, 20+20)
	ip[0] = 0x45 // IHL 5
	ip[20+13] = packet.FlagSYN | packet.FlagACK
	if got := tcpFlagsFromRaw(ip); got != packet.FlagSYN|packet.FlagACK {
		t.Errorf("tcpFlagsFromRaw() = 0x%02x, want 0x%02x", got, packet.FlagSYN|packet.FlagACK)
	}
}

func TestTCPWindowFromRaw(t *testing.T) {
	ip := make([]byte, 20+20)
	ip[0] = 0x45
	ip[20+14] = 0x04
	ip[20+15] = 0x00
	if got := tcpWindowFromRaw(ip); got != 1024 {
		t.Errorf("tcpWindowFromRaw() = %d, want 1024", got)
	}
}
