package osfp

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/KilimcininKorOglu/trident/internal/result"
)

// LoadDBFile parses path as an nmap-os-db file.
func LoadDBFile(path string) (*DB, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	db, errs := ParseDB(f)
	return db, errs, nil
}

// ParseDB reads an nmap-os-db file: repeated `Fingerprint <name>` blocks,
// each with an optional `Class` and `CPE` line followed by one line per
// test (`SEQ(...)`, `OPS(...)`, `WIN(...)`, `ECN(...)`, `T1(...)`..`T7(...)`,
// `IE(...)`, `U1(...)`), plus a top-level `MatchPoints` weighting line.
// Malformed lines are collected, not fatal, matching the rest of the
// engine's DB parsers.
func ParseDB(r io.Reader) (*DB, []error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	db := &DB{MatchPoints: make(map[string]int)}
	var current *Fingerprint
	var errs []error
	lineNo := 0

	flush := func() {
		if current != nil {
			db.Fingerprints = append(db.Fingerprints, current)
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Fingerprint "):
			flush()
			current = &Fingerprint{
				Name:  strings.TrimPrefix(line, "Fingerprint "),
				Tests: make(map[string]string),
			}

		case strings.HasPrefix(line, "MatchPoints"):
			// The directive lists weights as "TestName#Field=points" pairs;
			// trident keeps per-test (not per-field) weights, which is the
			// granularity score operates at.
			for _, kv := range strings.Fields(strings.TrimPrefix(line, "MatchPoints")) {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					continue
				}
				n, err := strconv.Atoi(parts[1])
				if err != nil {
					continue
				}
				test := parts[0]
				if idx := strings.Index(test, "#"); idx >= 0 {
					test = test[:idx]
				}
				db.MatchPoints[test] = n
			}

		case current == nil:
			continue

		case strings.HasPrefix(line, "Class "):
			current.Class = strings.TrimPrefix(line, "Class ")

		case strings.HasPrefix(line, "CPE "):
			current.CPE = strings.TrimPrefix(line, "CPE ")

		default:
			if idx := strings.Index(line, "("); idx > 0 && strings.HasSuffix(line, ")") {
				testName := line[:idx]
				body := line[idx+1 : len(line)-1]
				current.Tests[testName] = body
			} else {
				errs = append(errs, &result.ParseError{Line: lineNo, Text: line, Reason: "unrecognized nmap-os-db directive"})
			}
		}
	}
	flush()

	return db, errs
}

// ParseRuleBody splits a test's "%"-delimited "KEY=value" body into a map,
// the representation both DB fingerprint rules and extracted target
// signatures are compared in.
func ParseRuleBody(body string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(body, "%") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			fields[kv[0]] = kv[1]
		}
	}
	return fields
}
