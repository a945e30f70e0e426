package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePortSpec parses an nmap-style port list: comma-separated ports and
// "N-M" ranges (e.g. "22,80,8000-8010"). An empty spec yields the common
// top ports rather than an empty scan.
func parsePortSpec(spec string) ([]uint16, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return defaultPorts, nil
	}

	var ports []uint16
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "-") {
			p, err := strconv.ParseUint(entry, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", entry, err)
			}
			ports = append(ports, uint16(p))
			continue
		}
		bounds := strings.SplitN(entry, "-", 2)
		start, err := strconv.ParseUint(bounds[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port range %q: %w", entry, err)
		}
		end, err := strconv.ParseUint(bounds[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port range %q: %w", entry, err)
		}
		for p := start; p <= end; p++ {
			ports = append(ports, uint16(p))
		}
	}
	return ports, nil
}

// defaultPorts mirrors nmap's most commonly open set, used when -p is
// omitted so a bare `trident scan host` still does something useful.
var defaultPorts = []uint16{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139,
	143, 443, 445, 993, 995, 1723, 3306, 3389, 5900, 8080,
}
