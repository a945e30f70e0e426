package osfp

import (
	"strconv"
	"strings"
)

// testOrder lists every test nmap-os-db fingerprints carry, in the order
// nmap itself documents them. A signature or rule missing a test simply
// contributes no points for it.
var testOrder = []string{"SEQ", "OPS", "WIN", "ECN", "T1", "T2", "T3", "T4", "T5", "T6", "T7", "U1", "IE"}

// Match scores target against every fingerprint in db and returns
// candidates sorted best-first. Per spec §4.8 "returns the top N
// candidates with a confidence value"; callers slice the result to N.
func (db *DB) Match(target map[string]string) []MatchResult {
	results := make([]MatchResult, 0, len(db.Fingerprints))
	for _, fp := range db.Fingerprints {
		score := db.score(target, fp)
		results = append(results, MatchResult{Fingerprint: fp, Accuracy: score})
	}
	sortResultsDescending(results)
	return results
}

func sortResultsDescending(results []MatchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Accuracy > results[j-1].Accuracy; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// score weighs each test by its MatchPoints entry (default weight 1 if
// the DB carries no explicit weighting for that test), then reports the
// fraction of available weight that actually matched, as a percentage —
// the same ratio-of-matched-to-total shape as the reference matcher,
// generalized to weighted points instead of a flat per-test count.
func (db *DB) score(target map[string]string, fp *Fingerprint) float64 {
	var totalWeight, matchedWeight int

	for _, name := range testOrder {
		targetBody, hasTarget := target[name]
		ruleBody, hasRule := fp.Tests[name]
		if !hasTarget && !hasRule {
			continue
		}

		weight := db.MatchPoints[name]
		if weight <= 0 {
			weight = 1
		}
		totalWeight += weight

		if hasTarget != hasRule {
			continue
		}
		if matchTestBody(targetBody, ruleBody) {
			matchedWeight += weight
		}
	}

	if totalWeight == 0 {
		return 0
	}
	return float64(matchedWeight) / float64(totalWeight) * 100.0
}

// matchTestBody compares a target's observed "%"-delimited test body
// against a rule's, which may list alternatives or ranges per field.
func matchTestBody(targetBody, ruleBody string) bool {
	targetFields := ParseRuleBody(targetBody)
	ruleFields := ParseRuleBody(ruleBody)

	for key, pattern := range ruleFields {
		val, ok := targetFields[key]
		if !ok {
			return false
		}
		if !matchFieldValue(val, pattern) {
			return false
		}
	}
	return true
}

// matchFieldValue implements nmap-os-db's per-field pattern syntax:
// "|" alternatives, "-" hex ranges, ">"/"<" hex bounds, else exact match.
func matchFieldValue(val, pattern string) bool {
	if strings.Contains(pattern, "|") {
		for _, alt := range strings.Split(pattern, "|") {
			if matchFieldValue(val, alt) {
				return true
			}
		}
		return false
	}
	if strings.Contains(pattern, "-") && !strings.HasPrefix(pattern, "-") {
		bounds := strings.SplitN(pattern, "-", 2)
		lo, errLo := parseHex(bounds[0])
		hi, errHi := parseHex(bounds[1])
		v, errV := parseHex(val)
		if errLo == nil && errHi == nil && errV == nil {
			return v >= lo && v <= hi
		}
	}
	if strings.HasPrefix(pattern, ">") {
		limit, err1 := parseHex(pattern[1:])
		v, err2 := parseHex(val)
		if err1 == nil && err2 == nil {
			return v > limit
		}
	}
	if strings.HasPrefix(pattern, "<") {
		limit, err1 := parseHex(pattern[1:])
		v, err2 := parseHex(val)
		if err1 == nil && err2 == nil {
			return v < limit
		}
	}
	return val == pattern
}

func parseHex(s string) (int64, error) {
	return strconv.ParseInt(s, 16, 64)
}
