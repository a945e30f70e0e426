package serviceprobes

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseExclude reads the `Exclude` directive from an nmap-service-probes
// file. Only the first Exclude line counts; nmap documents the directive
// as appearing at most once, at the top of the file.
//
// The reference parser this was ported from has a variable-shadowing bug
// in its UDP range branch: it re-splits the original comma-separated
// token list (a stale outer variable) on "-" instead of the "T:"/"U:"
// entry actually being processed, so a UDP range after the first
// comma-separated entry parses against the wrong string. This version
// always splits the token currently being processed.
func ParseExclude(r io.Reader) (ExcludePorts, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Exclude") {
			continue
		}
		return parseExcludeLine(strings.TrimSpace(line[len("Exclude"):]))
	}
	return ExcludePorts{}, nil
}

func parseExcludeLine(body string) (ExcludePorts, error) {
	var ep ExcludePorts
	for _, entry := range strings.Split(body, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, ":") {
			p, err := strconv.ParseUint(entry, 10, 16)
			if err != nil {
				return ExcludePorts{}, err
			}
			ep.Ports = append(ep.Ports, uint16(p))
			continue
		}

		kv := strings.SplitN(entry, ":", 2)
		kind, rangeSpec := kv[0], kv[1]

		ports, err := expandPortRange(rangeSpec)
		if err != nil {
			return ExcludePorts{}, err
		}
		switch kind {
		case "T":
			ep.TCPPorts = append(ep.TCPPorts, ports...)
		case "U":
			ep.UDPPorts = append(ep.UDPPorts, ports...)
		}
	}
	return ep, nil
}

// expandPortRange parses "N" or "N-M" from the single entry it was handed
// — never from some other entry in the surrounding list.
func expandPortRange(rangeSpec string) ([]uint16, error) {
	if !strings.Contains(rangeSpec, "-") {
		p, err := strconv.ParseUint(rangeSpec, 10, 16)
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(p)}, nil
	}
	bounds := strings.SplitN(rangeSpec, "-", 2)
	start, err := strconv.ParseUint(bounds[0], 10, 16)
	if err != nil {
		return nil, err
	}
	end, err := strconv.ParseUint(bounds[1], 10, 16)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, end-start+1)
	for p := start; p <= end; p++ {
		out = append(out, uint16(p))
	}
	return out, nil
}
