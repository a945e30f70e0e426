package scan

import (
	"context"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/addr"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/techniques"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// RunARPScan sweeps every host in target over one datalink socket bound to
// src.Iface, aggregating replies into an ArpScanResults. ARP scanning is
// inherently single-socket (one interface, one broadcast domain), so
// probes run one at a time; unlike the other Run*Scan entry points it
// takes no threadsNum parameter.
func RunARPScan(ctx context.Context, target Target, src addr.Source, timeout time.Duration) (*result.ArpScanResults, []error) {
	sock, err := transport.OpenDatalinkSocket(src.Iface.Name)
	if err != nil {
		return nil, []error{err}
	}
	defer sock.Close()

	cache := addr.NewARPCache()
	agg := result.NewArpScanResults()
	var errs []error
	var mu sync.Mutex

	type job struct{ addr result.PingResult }
	var wg sync.WaitGroup
	sem := make(chan struct{}, 1) // serialize probes on the shared zombie-free broadcast domain

	for _, h := range target.Hosts {
		wg.Add(1)
		go func(dst Host) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pr, mac, err := techniques.ARPProbe(ctx, sock, cache, src, dst.Addr, timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if pr.Status == result.Up {
				agg.AliveHosts[dst.Addr.String()] = result.ArpAliveHost{MAC: mac}
			}
		}(h)
	}
	wg.Wait()

	return agg, errs
}
