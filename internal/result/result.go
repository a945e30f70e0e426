// Package result holds the status and result types shared by every probe
// technique and the scan orchestrator. These are data-only: the probe
// engine populates them, the output package renders them.
package result

import (
	"fmt"
	"net"
	"time"
)

// PortStatus is the reachability verdict a technique assigns to a
// (host, port) or (host, protocol) pair. Semantics per technique are
// defined by the techniques package; this type only names the states.
type PortStatus int

const (
	// Unreachable means the probe could not be completed (socket error,
	// routing failure); it is not itself a network-observed state.
	Unreachable PortStatus = iota
	Open
	Closed
	Filtered
	OpenOrFiltered
	Unfiltered
	ClosedOrFiltered
)

func (s PortStatus) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Filtered:
		return "filtered"
	case OpenOrFiltered:
		return "open|filtered"
	case Unfiltered:
		return "unfiltered"
	case ClosedOrFiltered:
		return "closed|filtered"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// PingStatus is the liveness verdict of a host-discovery probe.
type PingStatus int

const (
	Down PingStatus = iota
	Up
)

func (s PingStatus) String() string {
	if s == Up {
		return "up"
	}
	return "down"
}

// PingResult is the outcome of one host-discovery probe (ICMP, ARP, TCP
// SYN/ACK ping, or UDP ping).
type PingResult struct {
	Addr   net.IP
	Status PingStatus
	RTT    *time.Duration
}

func (p PingResult) String() string {
	return fmt.Sprintf("%s %s", p.Addr, p.Status)
}

// ArpAliveHost records one host that answered an ARP scan.
type ArpAliveHost struct {
	MAC net.HardwareAddr
	OUI string // resolved by the external OUI-lookup collaborator; empty if unavailable
}

// ArpScanResults aggregates an ARP sweep of a local subnet.
type ArpScanResults struct {
	AliveHosts map[string]ArpAliveHost // keyed by IP.String()
}

func NewArpScanResults() *ArpScanResults {
	return &ArpScanResults{AliveHosts: make(map[string]ArpAliveHost)}
}

func (r *ArpScanResults) String() string {
	s := fmt.Sprintf("Alive hosts: %d\n", len(r.AliveHosts))
	for ip, h := range r.AliveHosts {
		oui := h.OUI
		if oui == "" {
			oui = "unknown"
		}
		s += fmt.Sprintf("%s: %s (%s)\n", ip, h.MAC, oui)
	}
	return s
}

// TCPUDPScanResults aggregates one host's per-port verdicts for a TCP or
// UDP technique.
type TCPUDPScanResults struct {
	Addr    net.IP
	Results map[uint16]PortStatus
	RTT     *time.Duration

	// Services holds the C7 service/version identification for each open
	// port that was probed, if service detection ran. Ports with no entry
	// either weren't open or weren't identified by any probe in the DB.
	Services map[uint16]ServiceMatch
}

func NewTCPUDPScanResults(addr net.IP) *TCPUDPScanResults {
	return &TCPUDPScanResults{Addr: addr, Results: make(map[uint16]PortStatus)}
}

func (r *TCPUDPScanResults) String() string {
	s := ""
	for port, status := range r.Results {
		s += fmt.Sprintf("%s %d %s\n", r.Addr, port, status)
	}
	return s
}

// IPScanResults aggregates one host's per-protocol verdicts for an IP
// protocol scan.
type IPScanResults struct {
	Addr    net.IP
	Results map[uint8]PortStatus // keyed by IP protocol number
	RTT     *time.Duration
}

func NewIPScanResults(addr net.IP) *IPScanResults {
	return &IPScanResults{Addr: addr, Results: make(map[uint8]PortStatus)}
}

func (r *IPScanResults) String() string {
	s := ""
	for proto, status := range r.Results {
		s += fmt.Sprintf("%s %d %s\n", r.Addr, proto, status)
	}
	return s
}

// IdleScanResult carries the zombie IP-ID bracketing observation for one
// idle-scan probe (§4.5 Idle technique).
type IdleScanResult struct {
	ZombieIPIDBefore uint16
	ZombieIPIDAfter  uint16
}

// Delta returns the wrapped difference between the two zombie IP-ID
// observations, accounting for 16-bit wraparound.
func (r IdleScanResult) Delta() int {
	d := int(r.ZombieIPIDAfter) - int(r.ZombieIPIDBefore)
	if d < 0 {
		d += 1 << 16
	}
	return d
}

// ServiceMatch is the outcome of matching response bytes against the
// service-probe database (C7).
type ServiceMatch struct {
	Service     string
	ProbeName   string // the Probe section whose match/fallback rules produced this
	Pattern     string // the source pattern text, for diagnostics
	VersionInfo string
	Soft        bool // true if this came from a softmatch, not a hard match
}
