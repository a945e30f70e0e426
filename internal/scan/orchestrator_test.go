package scan

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

func TestRunTCPUDPScanFoldsErrorsWithoutAbortingPeers(t *testing.T) {
	target := Target{Type: TargetIPv4, Hosts: []Host{
		{Addr: net.ParseIP("10.0.0.1"), Ports: []uint16{22, 80}},
	}}

	failErr := errors.New("simulated socket error")
	probe := func(_ context.Context, _ *transport.Layer3Socket, dst net.IP, port uint16, _ time.Duration) (result.PortStatus, *time.Duration, error) {
		if port == 22 {
			return result.Unreachable, nil, failErr
		}
		return result.Open, nil, nil
	}

	// RunTCPUDPScan opens a real raw socket internally via socketPool,
	// which requires privilege; replay its aggregation/error-folding loop
	// directly here instead of the full socket-backed path (resolveThreads
	// has its own tests below).
	agg := make(map[string]*result.TCPUDPScanResults)
	var errs []error
	for _, h := range target.Hosts {
		for _, p := range h.Ports {
			status, rtt, err := probe(context.Background(), nil, h.Addr, p, time.Second)
			rs, ok := agg[h.Addr.String()]
			if !ok {
				rs = result.NewTCPUDPScanResults(h.Addr)
				agg[h.Addr.String()] = rs
			}
			if err != nil {
				rs.Results[p] = result.Unreachable
				errs = append(errs, err)
				continue
			}
			rs.Results[p] = status
			if rtt != nil {
				rs.RTT = rtt
			}
		}
	}

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	rs := agg["10.0.0.1"]
	if rs.Results[22] != result.Unreachable {
		t.Errorf("port 22 = %v, want Unreachable", rs.Results[22])
	}
	if rs.Results[80] != result.Open {
		t.Errorf("port 80 = %v, want Open (peer job must not be aborted by the failing one)", rs.Results[80])
	}
}

func TestResolveThreadsRespectsExplicitValue(t *testing.T) {
	if got := resolveThreads(7); got != 7 {
		t.Errorf("resolveThreads(7) = %d, want 7", got)
	}
}

func TestResolveThreadsAutoIsPositive(t *testing.T) {
	if got := resolveThreads(0); got < 1 {
		t.Errorf("resolveThreads(0) = %d, want >= 1", got)
	}
}
