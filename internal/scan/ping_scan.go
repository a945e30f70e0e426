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

// RunICMPPingScan pings every host in target concurrently, bounded by
// threadsNum (0 = auto), and returns one PingResult per host. Each worker
// gets its own Layer3Socket via socketPool rather than sharing one across
// goroutines: transport.SendAndWait sets read deadlines and runs its own
// readLoop goroutines on whatever conn it's handed, so two concurrent
// callers sharing a socket can race on those deadlines and steal each
// other's replies off the wire (the correct reply to one probe gets read
// by another probe's readLoop, fails that probe's match, and is dropped —
// the host that actually answered gets misreported as Down).
func RunICMPPingScan(ctx context.Context, target Target, src net.IP, threadsNum int, timeout time.Duration) ([]result.PingResult, []error) {
	family := transport.IPv4
	if target.Type == TargetIPv6 {
		family = transport.IPv6
	}

	pool := newSocketPool(family)
	defer pool.closeAll()

	// Acquire the first worker's socket synchronously so a privilege
	// failure (the common case when run unprivileged) is returned
	// immediately instead of surfacing only once inside a worker
	// goroutine.
	firstSock, err := pool.acquire()
	if err != nil {
		return nil, []error{err}
	}

	var addrs []net.IP
	if target.Type == TargetIPv6 {
		for _, h := range target.Hosts6 {
			addrs = append(addrs, h.Addr)
		}
	} else {
		for _, h := range target.Hosts {
			addrs = append(addrs, h.Addr)
		}
	}

	jobs := make(chan net.IP)
	type jobResult struct {
		pr  result.PingResult
		err error
	}
	results := make(chan jobResult)

	// The worker pool uses errgroup in place of a bare sync.WaitGroup so a
	// socket-acquisition failure (the common unprivileged-run case)
	// propagates back to the caller instead of the worker silently
	// returning; a per-host ping failure is still folded into jobResult's
	// err field below rather than returned through the group, since one
	// unreachable host must never abort the rest of the sweep.
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
			for dst := range jobs {
				pr, err := techniques.ICMPPing(ctx, sock, src, dst, timeout)
				results <- jobResult{pr: pr, err: err}
			}
			return nil
		})
	}
	go func() {
		defer close(jobs)
		for _, a := range addrs {
			select {
			case <-ctx.Done():
				return
			case jobs <- a:
			}
		}
	}()
	var waitErr error
	go func() {
		waitErr = eg.Wait()
		close(results)
	}()

	var out []result.PingResult
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		out = append(out, r.pr)
	}
	if waitErr != nil {
		errs = append(errs, waitErr)
	}
	return out, errs
}
