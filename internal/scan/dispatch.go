package scan

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/techniques"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// probeFuncFor adapts a techniques.* function (which takes an explicit
// source address) into the orchestrator's ProbeFunc shape by resolving src
// once per call. Connect scan needs no socket and is handled separately by
// RunConnectScan.
func probeFuncFor(tech Technique, src net.IP) (ProbeFunc, error) {
	switch tech {
	case TechSYN:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.SYNScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechFIN:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.FINScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechNULL:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.NULLScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechXmas:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.XmasScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechACK:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.ACKScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechWindow:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.WindowScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechMaimon:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.MaimonScan(ctx, sock, src, dst, port, timeout)
		}, nil
	case TechUDP:
		return func(ctx context.Context, sock *transport.Layer3Socket, dst net.IP, port uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
			return techniques.UDPScan(ctx, sock, src, dst, port, nil, timeout)
		}, nil
	default:
		return nil, fmt.Errorf("technique %d has no per-port probe function", tech)
	}
}

// Scan runs technique against every (host, port) pair in target using a
// worker pool bounded by threadsNum (0 = auto), aggregating into one
// TCPUDPScanResults per host.
func Scan(ctx context.Context, target Target, src net.IP, technique Technique, threadsNum int, timeout time.Duration) (map[string]*result.TCPUDPScanResults, []error) {
	probe, err := probeFuncFor(technique, src)
	if err != nil {
		return nil, []error{err}
	}
	return RunTCPUDPScan(ctx, target, src, threadsNum, timeout, probe)
}

// RunConnectScan is Scan's Connect-technique counterpart: it needs no raw
// socket or source address, so it runs its own lightweight worker pool
// over net.Dialer instead of reusing socketPool.
func RunConnectScan(ctx context.Context, target Target, threadsNum int, timeout time.Duration) (map[string]*result.TCPUDPScanResults, []error) {
	type job struct {
		addr net.IP
		port uint16
	}
	type jobResult struct {
		job    job
		status result.PortStatus
		rtt    *time.Duration
		err    error
	}

	jobs := make(chan job)
	results := make(chan jobResult)

	var wg sync.WaitGroup
	workerCount := resolveThreads(threadsNum)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				status, rtt, err := techniques.ConnectScan(ctx, j.addr, j.port, timeout)
				results <- jobResult{job: j, status: status, rtt: rtt, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, h := range target.Hosts {
			for _, p := range h.Ports {
				select {
				case <-ctx.Done():
					return
				case jobs <- job{addr: h.Addr, port: p}:
				}
			}
		}
	}()

	go func() {
		wg.Wait()
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
	return agg, errs
}
