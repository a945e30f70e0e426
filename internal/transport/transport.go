// Package transport is the fabric C5 techniques send packets through and
// wait on for a matching reply (C3, spec §4.3). It owns exactly two send
// paths: a raw IP socket (Layer3Socket, opened once and reused across
// calls) for layer-3/4 probes (the shape
// the teacher's probe.TCPProber/UDPProber already use via
// golang.org/x/net/icmp and net.ListenPacket("ip4:...")), and a gopacket
// datalink handle for probes that must control the Ethernet frame itself
// (ARP discovery). Raw-socket IP_HDRINCL framing for the
// send side follows the carverauto SYN-scanner's pattern of building the
// IPv4 header by hand and writing it down a SOCK_RAW socket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"

	"github.com/KilimcininKorOglu/trident/internal/match"
	"github.com/KilimcininKorOglu/trident/internal/result"
)

// DefaultMaxLoop bounds the retransmission attempts a send makes on
// transient (non-fatal) send errors, mirroring nmap's own DEFAULT_MAXLOOP
// guard against an unbounded retry storm on a flaky interface.
const DefaultMaxLoop = 512

// DefaultTimeout is the wait applied when a technique does not set one
// explicitly.
const DefaultTimeout = 3 * time.Second

// Family selects the IP version a Layer3Socket speaks.
type Family int

const (
	IPv4 Family = iota
	IPv6
)

// Layer3Socket sends raw IP packets (with their own header already built
// by internal/packet) and waits for a single matching reply. One socket
// serves one outstanding call at a time; the scan orchestrator pools these
// the same way the teacher's probers each own their sockets exclusively.
type Layer3Socket struct {
	family   Family
	conn     net.PacketConn
	icmpConn *icmp.PacketConn
}

// OpenLayer3Socket opens the raw IP and ICMP listen sockets used for
// sending arbitrary IP payloads and receiving both transport-layer and
// ICMP-error responses. Requires CAP_NET_RAW / root, exactly like the
// teacher's prober constructors.
func OpenLayer3Socket(family Family) (*Layer3Socket, error) {
	var network, icmpNetwork, bind string
	if family == IPv6 {
		network, icmpNetwork, bind = "ip6:ip", "ip6:ipv6-icmp", "::"
	} else {
		network, icmpNetwork, bind = "ip4:ip", "ip4:icmp", "0.0.0.0"
	}

	conn, err := net.ListenPacket(network, bind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", result.ErrInsufficientPrivilege, err)
	}
	icmpConn, err := icmp.ListenPacket(icmpNetwork, bind)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", result.ErrInsufficientPrivilege, err)
	}

	return &Layer3Socket{family: family, conn: conn, icmpConn: icmpConn}, nil
}

// Close releases both sockets.
func (s *Layer3Socket) Close() error {
	err1 := s.conn.Close()
	err2 := s.icmpConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SendAndWait writes packetBytes to dst, then reads frames from both the
// raw IP socket and the ICMP listener until one satisfies m, ctx is
// cancelled, or timeout elapses. A send that fails with a transient error
// (EAGAIN-class) is retried up to DefaultMaxLoop times; anything else is
// returned immediately as ErrTransmissionFailed.
func (s *Layer3Socket) SendAndWait(ctx context.Context, dst net.IP, packetBytes []byte, m match.LayersMatch, timeout time.Duration) ([]byte, *time.Duration, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	if err := s.send(dst, packetBytes); err != nil {
		return nil, nil, err
	}

	deadline := time.Now().Add(timeout)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, err
	}
	if err := s.icmpConn.SetReadDeadline(deadline); err != nil {
		return nil, nil, err
	}

	sendTime := time.Now()
	type frame = struct {
		data []byte
		err  error
	}
	frames := make(chan frame, 2)

	go readLoop(s.conn, frames, ctx.Done())
	go readLoop(s.icmpConn, frames, ctx.Done())

	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case f := <-frames:
			if f.err != nil {
				if errors.Is(f.err, errTimeout) {
					return nil, nil, result.ErrNoResponse
				}
				continue
			}
			famNum := 4
			if s.family == IPv6 {
				famNum = 6
			}
			parsed, ok := match.ParseIP(f.data, famNum)
			if !ok {
				continue
			}
			if match.Match(m, parsed) {
				rtt := time.Since(sendTime)
				return f.data, &rtt, nil
			}
		}
	}
}

var errTimeout = errors.New("read timeout")

func readLoop(conn net.PacketConn, out chan<- struct {
	data []byte
	err  error
}, done <-chan struct{}) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				out <- struct {
					data []byte
					err  error
				}{nil, errTimeout}
				return
			}
			out <- struct {
				data []byte
				err  error
			}{nil, err}
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		out <- struct {
			data []byte
			err  error
		}{cp, nil}
	}
}

// send writes packetBytes to dst, retrying transient errors up to
// DefaultMaxLoop times.
func (s *Layer3Socket) send(dst net.IP, packetBytes []byte) error {
	addr := &net.IPAddr{IP: dst}
	var lastErr error
	for attempt := 0; attempt < DefaultMaxLoop; attempt++ {
		_, err := s.conn.WriteTo(packetBytes, addr)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
	}
	return fmt.Errorf("%w: %v", result.ErrTransmissionFailed, lastErr)
}

func isTransient(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
