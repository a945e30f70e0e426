package scan

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/serviceprobes"
)

// IdentifyServices probes every open TCP port recorded in results against
// db, sending each candidate probe's payload over a fresh TCP connection
// and matching the response (C7). Ports the caller didn't find Open are
// left untouched. This mirrors nmap's own -sV behavior of only bothering
// with version detection on ports a port scan already confirmed open.
func IdentifyServices(ctx context.Context, results map[string]*result.TCPUDPScanResults, db *serviceprobes.DB, threadsNum int, timeout time.Duration) []error {
	type job struct {
		rs   *result.TCPUDPScanResults
		port uint16
	}
	var jobs []job
	for _, rs := range results {
		for port, status := range rs.Results {
			if status == result.Open {
				jobs = append(jobs, job{rs: rs, port: port})
			}
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	jobCh := make(chan job)
	type jobErr struct{ err error }
	errCh := make(chan jobErr)

	var wg sync.WaitGroup
	for i := 0; i < resolveThreads(threadsNum); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				match, err := identifyOne(ctx, db, j.rs.Addr, j.port, timeout)
				if err != nil {
					errCh <- jobErr{err: err}
					continue
				}
				if match != nil {
					if j.rs.Services == nil {
						j.rs.Services = make(map[uint16]result.ServiceMatch)
					}
					j.rs.Services[j.port] = *match
				}
				errCh <- jobErr{}
			}
		}()
	}
	go func() {
		defer close(jobCh)
		for _, j := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- j:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(errCh)
	}()

	var errs []error
	for e := range errCh {
		if e.err != nil {
			errs = append(errs, e.err)
		}
	}
	return errs
}

// identifyOne tries each candidate probe for this port in turn (the
// DB-listed TCP probes whose `ports` directive names it, then the NULL
// probe as a last resort the way nmap always tries it), stopping at the
// first successful identification.
func identifyOne(ctx context.Context, db *serviceprobes.DB, addr net.IP, port uint16, timeout time.Duration) (*result.ServiceMatch, error) {
	candidates := db.ProbesForPort(serviceprobes.ProtoTCP, port, false)
	if nullProbe, ok := db.ByName("NULL"); ok {
		candidates = append(candidates, nullProbe)
	}

	for _, probe := range candidates {
		resp, err := sendProbe(ctx, addr, port, probe.ProbeString, timeout)
		if err != nil {
			continue
		}
		if match, ok := db.Identify(probe, resp); ok {
			return &match, nil
		}
	}
	return nil, nil
}

func sendProbe(ctx context.Context, addr net.IP, port uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.String(), strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}
