package output

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/KilimcininKorOglu/trident/internal/result"
)

// ScanJSONPort is the JSON-serializable verdict for one scanned port.
type ScanJSONPort struct {
	Port        uint16  `json:"port"`
	Status      string  `json:"status"`
	Service     string  `json:"service,omitempty"`
	VersionInfo string  `json:"version,omitempty"`
	RTTMs       float64 `json:"rtt_ms,omitempty"`
}

// ScanJSONHost is the JSON-serializable per-host result of a TCP/UDP scan.
type ScanJSONHost struct {
	Addr  string         `json:"addr"`
	Ports []ScanJSONPort `json:"ports"`
}

// TCPUDPScanJSON renders a RunTCPUDPScan/Scan result map the same way
// JSONFormatter renders a trace.TraceResult: sorted for deterministic
// output (the scan engine's own aggregation, per its doc comment, leaves
// ordering unspecified) and pretty-printed by default.
func TCPUDPScanJSON(results map[string]*result.TCPUDPScanResults, pretty bool) ([]byte, error) {
	hosts := make([]ScanJSONHost, 0, len(results))
	for addr, rs := range results {
		jh := ScanJSONHost{Addr: addr}
		ports := make([]uint16, 0, len(rs.Results))
		for p := range rs.Results {
			ports = append(ports, p)
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
		for _, p := range ports {
			jp := ScanJSONPort{Port: p, Status: rs.Results[p].String()}
			if svc, ok := rs.Services[p]; ok {
				jp.Service = svc.Service
				jp.VersionInfo = svc.VersionInfo
			}
			if rs.RTT != nil {
				jp.RTTMs = roundFloat(float64(*rs.RTT)/1e6, 3)
			}
			jh.Ports = append(jh.Ports, jp)
		}
		hosts = append(hosts, jh)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Addr < hosts[j].Addr })

	if pretty {
		return json.MarshalIndent(hosts, "", "  ")
	}
	return json.Marshal(hosts)
}

// ScanJSONPingHost is the JSON-serializable result of one host-discovery probe.
type ScanJSONPingHost struct {
	Addr   string  `json:"addr"`
	Status string  `json:"status"`
	RTTMs  float64 `json:"rtt_ms,omitempty"`
}

// PingScanJSON renders a RunICMPPingScan/RunARPScan-style result slice as
// JSON, sorted by address for deterministic output.
func PingScanJSON(results []result.PingResult, pretty bool) ([]byte, error) {
	out := make([]ScanJSONPingHost, 0, len(results))
	for _, r := range results {
		jh := ScanJSONPingHost{Addr: r.Addr.String(), Status: r.Status.String()}
		if r.RTT != nil {
			jh.RTTMs = roundFloat(float64(*r.RTT)/1e6, 3)
		}
		out = append(out, jh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })

	if pretty {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}

// TCPUDPScanCSV renders a scan result map as CSV (addr,port,status,service,version,rtt_ms),
// following csv.go's header-then-rows shape for trace hops.
func TCPUDPScanCSV(results map[string]*result.TCPUDPScanResults) string {
	s := "addr,port,status,service,version,rtt_ms\n"
	addrs := make([]string, 0, len(results))
	for a := range results {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		rs := results[addr]
		ports := make([]uint16, 0, len(rs.Results))
		for p := range rs.Results {
			ports = append(ports, p)
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
		for _, p := range ports {
			svc, ver := "", ""
			if m, ok := rs.Services[p]; ok {
				svc, ver = m.Service, m.VersionInfo
			}
			rtt := ""
			if rs.RTT != nil {
				rtt = fmt.Sprintf("%.3f", float64(*rs.RTT)/1e6)
			}
			s += fmt.Sprintf("%s,%d,%s,%s,%s,%s\n", addr, p, rs.Results[p], svc, ver, rtt)
		}
	}
	return s
}
