package scan

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/transport"
	"golang.org/x/sync/errgroup"
)

// Technique names the probe strategy a scan dispatches to, letting the
// orchestrator stay generic over C5's many techniques instead of growing a
// bespoke worker pool per technique, the way the teacher's Tracer has one
// concurrent-probe loop shared by every TTL.
type Technique int

const (
	TechSYN Technique = iota
	TechConnect
	TechFIN
	TechNULL
	TechXmas
	TechACK
	TechWindow
	TechMaimon
	TechUDP
	TechIPProtocol
)

// portJob is one (host, port) unit of work for a TCP/UDP technique.
type portJob struct {
	addr net.IP
	port uint16
}

// ProbeFunc is what an orchestrator worker calls per job; it is handed the
// worker's own socket (from RunTCPUDPScan's socketPool) and returns the
// verdict plus an optional RTT.
type ProbeFunc func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error)

// resolveThreads turns the spec's threads_num convention (0 = auto) into a
// concrete worker count.
func resolveThreads(threadsNum int) int {
	if threadsNum > 0 {
		return threadsNum
	}
	n := runtime.NumCPU() * 4
	if n > 256 {
		n = 256
	}
	if n < 1 {
		n = 1
	}
	return n
}

// socketPool hands out one Layer3Socket per worker goroutine and closes
// them all in closeAll, so sockets are opened once per worker rather than
// once per probe.
type socketPool struct {
	family  transport.Family
	mu      sync.Mutex
	sockets []*transport.Layer3Socket
}

func newSocketPool(family transport.Family) *socketPool {
	return &socketPool{family: family}
}

func (p *socketPool) acquire() (*transport.Layer3Socket, error) {
	sock, err := transport.OpenLayer3Socket(p.family)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.sockets = append(p.sockets, sock)
	p.mu.Unlock()
	return sock, nil
}

func (p *socketPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sockets {
		s.Close()
	}
}

// RunTCPUDPScan fans target's (host, port) pairs out across a bounded
// worker pool, running probe for each, and aggregates into one
// TCPUDPScanResults per host. Per spec: RTT is the arithmetic minimum of
// successful probe RTTs for that host; a per-job error is folded into
// Unreachable and added to the returned errors rather than aborting the
// remaining jobs; result
// ordering is unspecified (callers sort on output if they need
// determinism).
func RunTCPUDPScan(ctx context.Context, target Target, src net.IP, threadsNum int, timeout time.Duration, probe ProbeFunc) (map[string]*result.TCPUDPScanResults, []error) {
	jobs := make(chan portJob, len(target.Hosts)*4+1)
	type jobResult struct {
		job    portJob
		status result.PortStatus
		rtt    *time.Duration
		err    error
	}
	results := make(chan jobResult, cap(jobs))

	pool := newSocketPool(transport.IPv4)
	defer pool.closeAll()

	// Acquire the first worker's socket synchronously, the way
	// ping_scan.go's RunICMPPingScan opens its first worker's socket before
	// spawning any goroutine. Without this, a privilege failure (the common case
	// when run unprivileged) only ever surfaces inside a worker goroutine
	// that silently returns on error — if every worker fails the same
	// way, the function returns an empty-but-success-shaped result
	// instead of the error that actually occurred.
	firstSock, err := pool.acquire()
	if err != nil {
		return nil, []error{err}
	}

	// The worker pool itself uses errgroup in place of a bare
	// sync.WaitGroup: a worker's only failure mode is its one-time socket
	// acquisition (transport.OpenLayer3Socket), and that failure needs to
	// reach the caller, unlike a per-job probe error, which spec.md §6
	// requires never aborts the rest of the scan and so is still folded
	// into PortStatus = Unreachable via the results channel below rather
	// than returned through the group.
	workerCount := resolveThreads(threadsNum)
	var eg errgroup.Group
	for i := 0; i < workerCount; i++ {
		sock, first := firstSock, i == 0
		eg.Go(func() error {
			if !first {
				s, err := pool.acquire()
				if err != nil {
					return err
				}
				sock = s
			}
			for job := range jobs {
				status, rtt, err := probe(ctx, sock, job.addr, job.port, timeout)
				results <- jobResult{job: job, status: status, rtt: rtt, err: err}
			}
			return nil
		})
	}

	go func() {
		defer close(jobs)
		for _, h := range target.Hosts {
			for _, p := range h.Ports {
				select {
				case <-ctx.Done():
					return
				case jobs <- portJob{addr: h.Addr, port: p}:
				}
			}
		}
	}()

	var waitErr error
	go func() {
		waitErr = eg.Wait()
		close(results)
	}()

	agg := make(map[string]*result.TCPUDPScanResults)
	var errs []error
	for r := range results {
		key := r.job.addr.String()
		rs, ok := agg[key]
		if !ok {
			rs = result.NewTCPUDPScanResults(r.job.addr)
			agg[key] = rs
		}
		if r.err != nil {
			rs.Results[r.job.port] = result.Unreachable
			errs = append(errs, fmt.Errorf("%s:%d: %w", r.job.addr, r.job.port, r.err))
			continue
		}
		rs.Results[r.job.port] = r.status
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
