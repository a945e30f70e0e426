package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/addr"
	"github.com/KilimcininKorOglu/trident/internal/enrich"
	"github.com/KilimcininKorOglu/trident/internal/osfp"
	"github.com/KilimcininKorOglu/trident/internal/output"
	"github.com/KilimcininKorOglu/trident/internal/resolve"
	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/scan"
	"github.com/KilimcininKorOglu/trident/internal/serviceprobes"
	"github.com/KilimcininKorOglu/trident/internal/techniques"
	"github.com/KilimcininKorOglu/trident/internal/transport"
	"github.com/spf13/cobra"
)

var (
	scanSYN      bool
	scanConnect  bool
	scanFIN      bool
	scanNULL     bool
	scanXmas     bool
	scanACK      bool
	scanWindow   bool
	scanMaimon   bool
	scanUDP      bool
	scanIPProto  bool
	scanPing     bool
	scanARP      bool
	scanOSDetect bool
	scanVersion  bool

	scanPorts     string
	scanProtocols string
	scanZombie    string
	scanThreads   int
	scanTimeout   time.Duration
	scanSourceIP  string
	scanJSON      bool
	scanCSV       bool
	scanEnrich    bool

	serviceDBPath string
	osDBPath      string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Probe a host or subnet for open ports, live hosts, services, and OS",
	Long: `Scan a target using the raw-packet probe techniques Trident builds on
top of its traceroute engine: TCP SYN/FIN/NULL/Xmas/ACK/Window/Maimon
scans, a plain TCP connect scan, UDP and IP-protocol scans, ICMP/ARP host
discovery, service/version identification, and OS fingerprinting.

Examples:
  trident scan -sS -p 22,80,443 192.168.1.1     SYN scan three ports
  trident scan -sU -p 53,123 10.0.0.5            UDP scan
  trident scan -sP 192.168.1.0/24                Ping sweep a subnet
  trident scan --arp 192.168.1.0/24              ARP sweep of a local subnet
  trident scan -sS -sV -p 1-1024 host            SYN scan + service detection
  trident scan -sS -O host                       SYN scan + OS fingerprint`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanSYN, "sS", false, "TCP SYN scan (requires raw-socket privileges)")
	scanCmd.Flags().BoolVar(&scanConnect, "sT", false, "TCP connect scan")
	scanCmd.Flags().BoolVar(&scanFIN, "sF", false, "TCP FIN scan")
	scanCmd.Flags().BoolVar(&scanNULL, "sN", false, "TCP NULL scan")
	scanCmd.Flags().BoolVar(&scanXmas, "sX", false, "TCP Xmas scan")
	scanCmd.Flags().BoolVar(&scanACK, "sA", false, "TCP ACK scan (firewall filtering probe)")
	scanCmd.Flags().BoolVar(&scanWindow, "sW", false, "TCP Window scan")
	scanCmd.Flags().BoolVar(&scanMaimon, "sM", false, "TCP Maimon scan")
	scanCmd.Flags().BoolVar(&scanUDP, "sU", false, "UDP scan")
	scanCmd.Flags().BoolVar(&scanIPProto, "sO", false, "IP protocol scan")
	scanCmd.Flags().BoolVar(&scanPing, "sP", false, "ICMP ping sweep (host discovery only)")
	scanCmd.Flags().BoolVar(&scanARP, "arp", false, "ARP sweep of a local subnet (host discovery only)")
	scanCmd.Flags().BoolVar(&scanOSDetect, "O", false, "Enable OS fingerprinting")
	scanCmd.Flags().BoolVar(&scanVersion, "sV", false, "Probe open ports for service/version info")

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "Ports to scan, e.g. 22,80,8000-8010 (default: common ports)")
	scanCmd.Flags().StringVar(&scanProtocols, "protocols", "1,2,6,17,47,50", "IP protocol numbers for -sO, comma-separated")
	scanCmd.Flags().StringVar(&scanZombie, "zombie", "", "Zombie host IP for an idle scan against --ports on <target>")
	scanCmd.Flags().IntVar(&scanThreads, "threads", 0, "Worker count (0 = auto)")
	scanCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", 2*time.Second, "Per-probe timeout")
	scanCmd.Flags().StringVarP(&scanSourceIP, "source", "S", "", "Source IP address (default: auto-detected)")
	scanCmd.Flags().BoolVarP(&scanJSON, "json", "j", false, "Output in JSON format")
	scanCmd.Flags().BoolVar(&scanCSV, "csv", false, "Output in CSV format")
	scanCmd.Flags().BoolVar(&scanEnrich, "enrich", false, "Annotate live hosts from -sP with rDNS/ASN/GeoIP (-sP only)")

	scanCmd.Flags().StringVar(&serviceDBPath, "service-db", "", "Path to an nmap-service-probes file (required for -sV)")
	scanCmd.Flags().StringVar(&osDBPath, "os-db", "", "Path to an nmap-os-db file (required for -O)")

	rootCmd.AddCommand(scanCmd)
}

// applyScanConfigDefaults fills in scan flags left at their zero value from
// cfg.Scan, the way root.go's applyConfigDefaults does for the traceroute
// flags — cfg is only loaded by rootCmd's PersistentPreRunE, so scan
// inherits it from the root command rather than loading its own copy.
func applyScanConfigDefaults(cmd *cobra.Command) {
	if cfg == nil {
		return
	}
	d := cfg.Scan
	if !cmd.Flags().Changed("threads") && d.Threads > 0 {
		scanThreads = d.Threads
	}
	if !cmd.Flags().Changed("scan-timeout") && d.Timeout > 0 {
		scanTimeout = d.Timeout
	}
	if !cmd.Flags().Changed("ports") && d.Ports != "" {
		scanPorts = d.Ports
	}
	if !cmd.Flags().Changed("service-db") && d.ServiceDB != "" {
		serviceDBPath = d.ServiceDB
	}
	if !cmd.Flags().Changed("os-db") && d.OSDB != "" {
		osDBPath = d.OSDB
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	applyScanConfigDefaults(cmd)

	targetArg := args[0]

	ipv4, _, err := resolveTarget(ctx, targetArg)
	if err != nil {
		return err
	}

	ports, err := parsePortSpec(scanPorts)
	if err != nil {
		return err
	}

	if strings.Contains(targetArg, "/") {
		return runSubnetScan(ctx, targetArg, ports)
	}

	src, err := pickSource(ipv4[0])
	if err != nil {
		return err
	}

	host, err := scan.NewHost(ipv4[0], ports)
	if err != nil {
		return err
	}
	target := scan.NewTarget([]scan.Host{host})

	if scanZombie != "" {
		return runIdleScan(ctx, src.Addr, ipv4[0], ports)
	}
	if scanPing {
		return runPingScan(ctx, target, src.Addr)
	}
	if scanIPProto {
		return runIPProtoScan(ctx, target, src.Addr)
	}

	technique, ok := chosenTechnique()
	if !ok {
		return fmt.Errorf("specify a scan technique (-sS, -sT, -sF, -sN, -sX, -sA, -sW, -sM, -sU, -sO, -sP, --arp) or --zombie")
	}

	results, errs := runTechniqueScan(ctx, target, src.Addr, technique)
	reportErrors(errs)

	if scanVersion {
		if serviceDBPath == "" {
			return fmt.Errorf("-sV requires --service-db <path to nmap-service-probes>")
		}
		db, dbErrs, err := serviceprobes.LoadFile(serviceDBPath)
		if err != nil {
			return fmt.Errorf("load service-probes db: %w", err)
		}
		reportErrors(dbErrs)
		errs = scan.IdentifyServices(ctx, results, db, scanThreads, scanTimeout)
		reportErrors(errs)
	}

	printTCPUDPResults(results)

	if scanOSDetect {
		if err := runOSFingerprint(ctx, src.Addr, ipv4[0], ports, results); err != nil {
			fmt.Fprintf(os.Stderr, "OS fingerprint: %v\n", err)
		}
	}

	return nil
}

func resolveTarget(ctx context.Context, target string) ([]net.IP, []net.IP, error) {
	if strings.Contains(target, "/") {
		return nil, nil, nil
	}
	return resolve.Host(ctx, target)
}

func pickSource(dst net.IP) (*addr.Source, error) {
	if scanSourceIP != "" {
		ip := net.ParseIP(scanSourceIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid --source address %q", scanSourceIP)
		}
		src, err := addr.FindSource(dst)
		if err != nil {
			return nil, err
		}
		src.Addr = ip
		return src, nil
	}
	return addr.FindSource(dst)
}

func chosenTechnique() (scan.Technique, bool) {
	switch {
	case scanSYN:
		return scan.TechSYN, true
	case scanConnect:
		return scan.TechConnect, true
	case scanFIN:
		return scan.TechFIN, true
	case scanNULL:
		return scan.TechNULL, true
	case scanXmas:
		return scan.TechXmas, true
	case scanACK:
		return scan.TechACK, true
	case scanWindow:
		return scan.TechWindow, true
	case scanMaimon:
		return scan.TechMaimon, true
	case scanUDP:
		return scan.TechUDP, true
	default:
		return 0, false
	}
}

func runTechniqueScan(ctx context.Context, target scan.Target, src net.IP, technique scan.Technique) (map[string]*result.TCPUDPScanResults, []error) {
	if technique == scan.TechConnect {
		return scan.RunConnectScan(ctx, target, scanThreads, scanTimeout)
	}
	return scan.Scan(ctx, target, src, technique, scanThreads, scanTimeout)
}

func runPingScan(ctx context.Context, target scan.Target, src net.IP) error {
	results, errs := scan.RunICMPPingScan(ctx, target, src, scanThreads, scanTimeout)
	reportErrors(errs)
	if scanEnrich {
		printEnrichedPingResults(ctx, results)
		return nil
	}
	return printPingResults(results)
}

// printEnrichedPingResults annotates every live (Up) host with the same
// rDNS/ASN/GeoIP collaborator the trace command uses (internal/enrich),
// the way cmd/trident/root.go builds a traceConfig.MaxMindDB-backed
// enricher for trace hops — here applied to scan's own host-discovery
// verdicts instead of trace hops.
func printEnrichedPingResults(ctx context.Context, results []result.PingResult) {
	var live []net.IP
	for _, r := range results {
		if r.Status == result.Up {
			live = append(live, r.Addr)
		}
	}

	e := enrich.NewEnricher(enrich.DefaultEnricherConfig())
	defer e.Close()
	enriched := e.EnrichIPs(ctx, live)

	for _, r := range results {
		line := r.String()
		if info, ok := enriched[r.Addr.String()]; ok && info != nil {
			if info.Hostname != "" {
				line += fmt.Sprintf(" %s", info.Hostname)
			}
			if info.ASN != nil {
				line += fmt.Sprintf(" AS%d %s", info.ASN.Number, info.ASN.Org)
			}
			if info.Geo != nil {
				line += fmt.Sprintf(" %s/%s", info.Geo.City, info.Geo.Country)
			}
		}
		fmt.Println(line)
	}
}

// printPingResults renders a host-discovery sweep per --json/--csv/text,
// mirroring printTCPUDPResults' format selection.
func printPingResults(results []result.PingResult) error {
	switch {
	case scanJSON:
		data, err := output.PingScanJSON(results, true)
		if err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		fmt.Println(string(data))
	case scanCSV:
		fmt.Print("addr,status,rtt_ms\n")
		for _, r := range results {
			rtt := ""
			if r.RTT != nil {
				rtt = fmt.Sprintf("%.3f", float64(*r.RTT)/1e6)
			}
			fmt.Printf("%s,%s,%s\n", r.Addr, r.Status, rtt)
		}
	default:
		for _, r := range results {
			fmt.Println(r.String())
		}
	}
	return nil
}

func runIPProtoScan(ctx context.Context, target scan.Target, src net.IP) error {
	protocols, err := parseProtocolList(scanProtocols)
	if err != nil {
		return err
	}
	results, errs := scan.RunIPProtocolScan(ctx, target, src, protocols, scanThreads, scanTimeout)
	reportErrors(errs)
	for _, rs := range results {
		fmt.Print(rs.String())
	}
	return nil
}

func runIdleScan(ctx context.Context, src, dst net.IP, ports []uint16) error {
	zombie := net.ParseIP(scanZombie)
	if zombie == nil {
		return fmt.Errorf("invalid --zombie address %q", scanZombie)
	}
	sock, err := transport.OpenLayer3Socket(transport.IPv4)
	if err != nil {
		return err
	}
	defer sock.Close()

	for _, port := range ports {
		status, idle, err := techniques.IdleScan(ctx, sock, src, zombie, dst, port, scanTimeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "port %d: %v\n", port, err)
			continue
		}
		fmt.Printf("%s %d %s (zombie IP-ID delta %d)\n", dst, port, status, idle.Delta())
	}
	return nil
}

func runSubnetScan(ctx context.Context, cidr string, ports []uint16) error {
	target, err := scan.FromSubnet(cidr, ports)
	if err != nil {
		return err
	}

	_, netIP, err := net.ParseCIDR(cidr)
	if err != nil {
		return err
	}
	src, err := addr.FindSource(netIP.IP)
	if err != nil {
		return err
	}

	if scanARP {
		results, errs := scan.RunARPScan(ctx, target, *src, scanTimeout)
		reportErrors(errs)
		if results != nil {
			fmt.Print(results.String())
		}
		return nil
	}
	if scanPing {
		return runPingScan(ctx, target, src.Addr)
	}

	technique, ok := chosenTechnique()
	if !ok {
		return fmt.Errorf("subnet scans need a technique (-sS, -sT, ..., -sP, or --arp)")
	}
	results, errs := runTechniqueScan(ctx, target, src.Addr, technique)
	reportErrors(errs)
	printTCPUDPResults(results)
	return nil
}

func runOSFingerprint(ctx context.Context, src, dst net.IP, ports []uint16, results map[string]*result.TCPUDPScanResults) error {
	if osDBPath == "" {
		return fmt.Errorf("-O requires --os-db <path to nmap-os-db>")
	}
	db, dbErrs, err := osfp.LoadDBFile(osDBPath)
	if err != nil {
		return err
	}
	reportErrors(dbErrs)

	var openPort, closedPort uint16
	if rs, ok := results[dst.String()]; ok {
		for port, status := range rs.Results {
			if status == result.Open && openPort == 0 {
				openPort = port
			}
			if (status == result.Closed) && closedPort == 0 {
				closedPort = port
			}
		}
	}
	if openPort == 0 && len(ports) > 0 {
		openPort = ports[0]
	}
	if closedPort == 0 {
		closedPort = pickClosedPortGuess(ports)
	}

	sock, err := transport.OpenLayer3Socket(transport.IPv4)
	if err != nil {
		return err
	}
	defer sock.Close()

	fpCtx, cancel := osfp.DefaultContext(ctx)
	defer cancel()

	matches, _, err := osfp.Fingerprint(fpCtx, sock, src, osfp.Target{Addr: dst, OpenPort: openPort, ClosedPort: closedPort}, db)
	if err != nil {
		return err
	}
	fmt.Println("OS guesses:")
	for i, m := range matches {
		if i >= 5 {
			break
		}
		fmt.Printf("  %5.1f%%  %s (%s)\n", m.Accuracy, m.Fingerprint.Name, m.Fingerprint.Class)
	}
	return nil
}

// pickClosedPortGuess picks a high port outside the requested set as a
// best-effort stand-in for a known-closed port when the scan results
// didn't already find one.
func pickClosedPortGuess(ports []uint16) uint16 {
	used := make(map[uint16]bool, len(ports))
	for _, p := range ports {
		used[p] = true
	}
	for p := uint16(54321); p < 60000; p++ {
		if !used[p] {
			return p
		}
	}
	return 54321
}

func parseProtocolList(spec string) ([]uint8, error) {
	var out []uint8
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(entry, "%d", &n); err != nil || n < 0 || n > 255 {
			return nil, fmt.Errorf("invalid protocol number %q", entry)
		}
		out = append(out, uint8(n))
	}
	return out, nil
}

func printTCPUDPResults(results map[string]*result.TCPUDPScanResults) {
	switch {
	case scanJSON:
		data, err := output.TCPUDPScanJSON(results, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "render JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
	case scanCSV:
		fmt.Print(output.TCPUDPScanCSV(results))
	default:
		for _, rs := range results {
			for port, status := range rs.Results {
				line := fmt.Sprintf("%s %d %s", rs.Addr, port, status)
				if svc, ok := rs.Services[port]; ok {
					line += fmt.Sprintf(" %s %s", svc.Service, svc.VersionInfo)
				}
				fmt.Println(strings.TrimRight(line, " "))
			}
		}
	}
}

func reportErrors(errs []error) {
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "warning: %v\n", e)
	}
}
