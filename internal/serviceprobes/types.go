// Package serviceprobes parses the nmap-service-probes grammar (C7) and
// applies it to raw bytes read back from a probed port, producing a
// service/version identification the way nmap's own -sV engine does.
package serviceprobes

import (
	"github.com/dlclark/regexp2"
)

// Protocol is the wire protocol a Probe directive applies to.
type Protocol int

const (
	ProtoTCP Protocol = iota
	ProtoUDP
)

func (p Protocol) String() string {
	if p == ProtoUDP {
		return "UDP"
	}
	return "TCP"
}

// Match is one `match` or `softmatch` line under a Probe. Pattern is kept
// in its original nmap form for diagnostics; Regex is compiled with
// regexp2 because nmap's patterns use PCRE constructs (lookaround,
// backreferences) that Go's RE2-based regexp package cannot express.
type Match struct {
	Service     string
	Pattern     string
	Regex       *regexp2.Regexp
	VersionInfo string
	Soft        bool
}

// Probe is one `Probe` section: what to send and how to recognize what
// comes back.
type Probe struct {
	Protocol     Protocol
	Name         string
	ProbeString  []byte
	NoPayload    bool
	Matches      []Match
	SoftMatches  []Match
	Ports        []uint16
	SSLPorts     []uint16
	TotalWaitMS  *uint64
	TCPWrappedMS *uint64
	Rarity       *uint64
	// Fallback names other probes whose match lines should also be tried,
	// in the listed order, when this probe's own matches come up empty.
	Fallback []string
}

// ExcludePorts is the parsed form of the file's `Exclude` directive.
type ExcludePorts struct {
	Ports    []uint16
	TCPPorts []uint16
	UDPPorts []uint16
}
