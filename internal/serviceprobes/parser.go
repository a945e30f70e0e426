package serviceprobes

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/KilimcininKorOglu/trident/internal/result"
)

// matchLineRegexps covers the four delimiter characters nmap-service-probes
// uses for match/softmatch patterns (the pattern itself may not contain its
// own delimiter, so the file picks whichever of | = % @ the author's
// pattern doesn't need).
var matchLineRegexps = []*regexp.Regexp{
	regexp.MustCompile(`^([a-zA-Z0-9\-_./]+) m\|([^|]*)\|([is]*)(?:\s+(.*))?$`),
	regexp.MustCompile(`^([a-zA-Z0-9\-_./]+) m=([^=]*)=([is]*)(?:\s+(.*))?$`),
	regexp.MustCompile(`^([a-zA-Z0-9\-_./]+) m%([^%]*)%([is]*)(?:\s+(.*))?$`),
	regexp.MustCompile(`^([a-zA-Z0-9\-_./]+) m@([^@]*)@([is]*)(?:\s+(.*))?$`),
}

// Go's regexp (RE2) has no backreferences, so unlike nmap's own parser we
// cannot match "open and close with whatever delimiter follows q"; instead
// enumerate the delimiters actually used in practice, same as match lines.
var probeLineRegexps = []*regexp.Regexp{
	regexp.MustCompile(`^Probe (TCP|UDP) ([^ ]+) q\|([^|]*)\|( no-payload)?$`),
	regexp.MustCompile(`^Probe (TCP|UDP) ([^ ]+) q=([^=]*)=( no-payload)?$`),
	regexp.MustCompile(`^Probe (TCP|UDP) ([^ ]+) q%([^%]*)%( no-payload)?$`),
}

// ParseProbes reads an nmap-service-probes file line by line and returns
// every well-formed Probe section, collecting (not aborting on) malformed
// lines the way the rest of the engine's DB parsers do.
func ParseProbes(r io.Reader) ([]*Probe, []error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var probes []*Probe
	var current *Probe
	var errs []error
	lineNo := 0

	flush := func() {
		if current != nil {
			probes = append(probes, current)
		}
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "Exclude") {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "Probe "):
			flush()
			p, err := parseProbeLine(trimmed)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				current = nil
				continue
			}
			current = p

		case current == nil:
			// Directive lines before any Probe section are malformed input.
			continue

		case strings.HasPrefix(trimmed, "match "):
			m, err := parseMatchLine(trimmed[len("match "):], false)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.Matches = append(current.Matches, m)

		case strings.HasPrefix(trimmed, "softmatch "):
			m, err := parseMatchLine(trimmed[len("softmatch "):], true)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.SoftMatches = append(current.SoftMatches, m)

		case strings.HasPrefix(trimmed, "ports "):
			ports, err := parsePortList(strings.TrimSpace(trimmed[len("ports "):]))
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.Ports = ports

		case strings.HasPrefix(trimmed, "sslports "):
			ports, err := parsePortList(strings.TrimSpace(trimmed[len("sslports "):]))
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.SSLPorts = ports

		case strings.HasPrefix(trimmed, "totalwaitms "):
			v, err := strconv.ParseUint(strings.TrimSpace(trimmed[len("totalwaitms "):]), 10, 64)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.TotalWaitMS = &v

		case strings.HasPrefix(trimmed, "tcpwrappedms "):
			v, err := strconv.ParseUint(strings.TrimSpace(trimmed[len("tcpwrappedms "):]), 10, 64)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.TCPWrappedMS = &v

		case strings.HasPrefix(trimmed, "rarity "):
			v, err := strconv.ParseUint(strings.TrimSpace(trimmed[len("rarity "):]), 10, 64)
			if err != nil {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: trimmed, Reason: err.Error()})
				continue
			}
			current.Rarity = &v

		case strings.HasPrefix(trimmed, "fallback "):
			// Fallback is first-match-wins in the order listed here: the
			// engine tries each named probe's matches in turn and stops at
			// the first one that matches, never merging or ranking by
			// specificity across fallbacks.
			names := strings.Split(strings.TrimSpace(trimmed[len("fallback "):]), ",")
			for i := range names {
				names[i] = strings.TrimSpace(names[i])
			}
			current.Fallback = names
		}
	}
	flush()

	return probes, errs
}

func parseProbeLine(line string) (*Probe, error) {
	for _, re := range probeLineRegexps {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		proto := ProtoTCP
		if m[1] == "UDP" {
			proto = ProtoUDP
		}
		return &Probe{
			Protocol:    proto,
			Name:        m[2],
			ProbeString: unescapeProbeString(m[3]),
			NoPayload:   m[4] != "",
		}, nil
	}
	return nil, &invalidLineError{"malformed Probe directive"}
}

// parseMatchLine parses the body of a match/softmatch directive: the
// service name, the delimited pattern with its flags, and the trailing
// versioninfo template.
func parseMatchLine(body string, soft bool) (Match, error) {
	for _, re := range matchLineRegexps {
		sub := re.FindStringSubmatch(body)
		if sub == nil {
			continue
		}
		service := sub[1]
		pattern := sub[2]
		flags := sub[3]
		versioninfo := sub[4]

		compiled := pattern
		opts := regexp2.None
		if strings.Contains(flags, "i") {
			opts |= regexp2.IgnoreCase
		}
		if strings.Contains(flags, "s") {
			opts |= regexp2.Singleline
		}
		// nmap's \0 means a literal NUL byte; RE2-family engines want it
		// spelled as a class escape rather than a raw \0 backslash escape.
		compiled = strings.ReplaceAll(compiled, `\0`, `\x00`)

		re2, err := regexp2.Compile(compiled, opts)
		if err != nil {
			return Match{}, err
		}
		re2.MatchTimeout = 250 * time.Millisecond

		return Match{
			Service:     service,
			Pattern:     pattern,
			Regex:       re2,
			VersionInfo: versioninfo,
			Soft:        soft,
		}, nil
	}
	return Match{}, &invalidLineError{"no recognized match delimiter"}
}

func parsePortList(s string) ([]uint16, error) {
	var out []uint16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			start, err := strconv.ParseUint(bounds[0], 10, 16)
			if err != nil {
				return nil, err
			}
			end, err := strconv.ParseUint(bounds[1], 10, 16)
			if err != nil {
				return nil, err
			}
			for p := start; p <= end; p++ {
				out = append(out, uint16(p))
			}
		} else {
			p, err := strconv.ParseUint(part, 10, 16)
			if err != nil {
				return nil, err
			}
			out = append(out, uint16(p))
		}
	}
	return out, nil
}

// unescapeProbeString turns the q|...| payload's backslash escapes into
// the raw bytes nmap actually transmits.
func unescapeProbeString(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			out = append(out, c)
			continue
		}
		i++
		switch s[i] {
		case '0':
			out = append(out, 0)
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					out = append(out, byte(v))
					i += 2
					continue
				}
			}
			out = append(out, 'x')
		default:
			out = append(out, s[i])
		}
	}
	return out
}

type invalidLineError struct{ msg string }

func (e *invalidLineError) Error() string { return e.msg }
