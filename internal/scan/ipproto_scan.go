package scan

import (
	"context"
	"net"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/techniques"
	"github.com/KilimcininKorOglu/trident/internal/transport"
	"golang.org/x/sync/errgroup"
)

// RunIPProtocolScan probes, for every host in target, each protocol number
// in protocols, aggregating into one IPScanResults per host. Each worker
// gets its own Layer3Socket via socketPool — sharing one across
// goroutines would let concurrent transport.SendAndWait calls race on the
// shared conn's read deadline and steal replies meant for a different
// worker's probe off the wire.
func RunIPProtocolScan(ctx context.Context, target Target, src net.IP, protocols []uint8, threadsNum int, timeout time.Duration) (map[string]*result.IPScanResults, []error) {
	pool := newSocketPool(transport.IPv4)
	defer pool.closeAll()

	// Acquire the first worker's socket synchronously so a privilege
	// failure (the common case when run unprivileged) is returned
	// immediately instead of surfacing only once inside a worker
	// goroutine.
	firstSock, err := pool.acquire()
	if err != nil {
		return nil, []error{err}
	}

	type job struct {
		addr  net.IP
		proto uint8
	}
	type jobResult struct {
		job    job
		status result.PortStatus
		rtt    *time.Duration
		err    error
	}

	jobs := make(chan job)
	results := make(chan jobResult)

	// The worker pool uses errgroup in place of a bare sync.WaitGroup so a
	// socket-acquisition failure propagates back to the caller instead of
	// the worker silently returning; a per-job probe error is still folded
	// into PortStatus = Unreachable via the results channel below rather
	// than returned through the group, since one unreachable host must
	// never abort the rest of the scan.
	var eg errgroup.Group
	for i := 0; i < resolveThreads(threadsNum); i++ {
		sock, first := firstSock, i == 0
		eg.Go(func() error {
			if !first {
				s, err := pool.acquire()
				if err != nil {
					return err
				}
				sock = s
			}
			for j := range jobs {
				status, rtt, err := techniques.IPProtocolScan(ctx, sock, src, j.addr, j.proto, timeout)
				results <- jobResult{job: j, status: status, rtt: rtt, err: err}
			}
			return nil
		})
	}
	go func() {
		defer close(jobs)
		for _, h := range target.Hosts {
			for _, p := range protocols {
				select {
				case <-ctx.Done():
					return
				case jobs <- job{addr: h.Addr, proto: p}:
				}
			}
		}
	}()

	var waitErr error
	go func() {
		waitErr = eg.Wait()
		close(results)
	}()

	agg := make(map[string]*result.IPScanResults)
	var errs []error
	for r := range results {
		key := r.job.addr.String()
		rs, ok := agg[key]
		if !ok {
			rs = result.NewIPScanResults(r.job.addr)
			agg[key] = rs
		}
		if r.err != nil {
			rs.Results[r.job.proto] = result.Unreachable
			errs = append(errs, r.err)
			continue
		}
		rs.Results[r.job.proto] = r.status
		if r.rtt != nil && (rs.RTT == nil || *r.rtt < *rs.RTT) {
			rtt := *r.rtt
			rs.RTT = &rtt
		}
	}
	if waitErr != nil {
		errs = append(errs, waitErr)
	}
	return agg, errs
}
