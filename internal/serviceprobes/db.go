package serviceprobes

import (
	"io"
	"os"

	"github.com/dlclark/regexp2"

	"github.com/KilimcininKorOglu/trident/internal/result"
)

// DB is a loaded nmap-service-probes file, indexed for lookup during
// response evaluation (§4.7).
type DB struct {
	Probes  []*Probe
	Exclude ExcludePorts

	byName map[string]*Probe
}

// LoadFile reads and parses path as an nmap-service-probes file,
// returning the DB plus any per-line parse errors (malformed lines are
// skipped, not fatal).
func LoadFile(path string) (*DB, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return NewDB(f)
}

// NewDB parses r as an nmap-service-probes file. r is read once into
// memory, and both the Probe sections and the Exclude directive are
// parsed from that copy; LoadFile opens the file and hands it to NewDB.
func NewDB(r io.Reader) (*DB, []error, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	probes, parseErrs := ParseProbes(newBytesReader(data))
	exclude, err := ParseExclude(newBytesReader(data))
	if err != nil {
		return nil, parseErrs, err
	}

	db := &DB{Probes: probes, Exclude: exclude, byName: make(map[string]*Probe, len(probes))}
	for _, p := range probes {
		db.byName[p.Name] = p
	}
	return db, parseErrs, nil
}

// ByName looks up a probe by its probename (used to resolve fallback
// chains).
func (db *DB) ByName(name string) (*Probe, bool) {
	p, ok := db.byName[name]
	return p, ok
}

// ProbesForPort returns probes of the given protocol whose `ports` (or,
// if ssl is true, `sslports`) directive lists port, ordered as they
// appear in the file (the file's own order already reflects nmap's
// rarity-tuned probing order).
func (db *DB) ProbesForPort(proto Protocol, port uint16, ssl bool) []*Probe {
	var out []*Probe
	for _, p := range db.Probes {
		if p.Protocol != proto {
			continue
		}
		list := p.Ports
		if ssl {
			list = p.SSLPorts
		}
		if containsPort(list, port) {
			out = append(out, p)
		}
	}
	return out
}

func containsPort(ports []uint16, port uint16) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

// Identify evaluates response against probe's own match/softmatch rules,
// then — only if nothing matched — against each fallback probe's rules
// in the listed order, stopping at the first hit (§4.7, resolving the
// spec's fallback-semantics open question as first-match-wins rather
// than a merge across fallbacks).
func (db *DB) Identify(probe *Probe, response []byte) (result.ServiceMatch, bool) {
	if id, ok := evaluate(probe, response); ok {
		return id, true
	}
	for _, name := range probe.Fallback {
		fb, ok := db.ByName(name)
		if !ok {
			continue
		}
		if id, ok := evaluate(fb, response); ok {
			return id, true
		}
	}
	return result.ServiceMatch{}, false
}

// evaluate checks hard matches before softmatches, short-circuiting on
// the first hit within each tier (§4.7: "matches is consulted before
// softmatches; a hard match short-circuits evaluation").
func evaluate(probe *Probe, response []byte) (result.ServiceMatch, bool) {
	s := string(response)
	for _, m := range probe.Matches {
		if groups, ok := matchGroups(m.Regex, s); ok {
			return result.ServiceMatch{
				Service:     m.Service,
				ProbeName:   probe.Name,
				Pattern:     m.Pattern,
				VersionInfo: ApplyVersionInfo(m.VersionInfo, groups),
				Soft:        false,
			}, true
		}
	}
	for _, m := range probe.SoftMatches {
		if groups, ok := matchGroups(m.Regex, s); ok {
			return result.ServiceMatch{
				Service:     m.Service,
				ProbeName:   probe.Name,
				Pattern:     m.Pattern,
				VersionInfo: ApplyVersionInfo(m.VersionInfo, groups),
				Soft:        true,
			}, true
		}
	}
	return result.ServiceMatch{}, false
}

// matchGroups runs re against s and, on a match, returns the numbered
// capture groups (index 0 is the whole match) for $1-style substitution
// into a versioninfo template.
func matchGroups(re *regexp2.Regexp, s string) ([]string, bool) {
	m, err := re.FindStringMatch(s)
	if err != nil || m == nil {
		return nil, false
	}
	groups := m.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.String()
		}
	}
	return out, true
}
