package serviceprobes

import (
	"strings"
	"testing"
)

const sampleDB = `# comment line
Exclude 53,T:9100,U:500-510
Probe TCP GetRequest q|GET / HTTP/1.0\r\n\r\n|
rarity 1
ports 80,8080
match http m|^HTTP/1\.[01] \d\d\d| p/generic http/
softmatch http m|^HTTP/| p/unknown http variant/
fallback NULL

Probe TCP NULL q||
rarity 1
match ssh m|^SSH-([\d.]+)-| p/OpenSSH/ v/$1/
`

func TestParseProbesParsesProbeAndDirectives(t *testing.T) {
	probes, errs := ParseProbes(strings.NewReader(sampleDB))
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	if len(probes) != 2 {
		t.Fatalf("got %d probes, want 2", len(probes))
	}

	get := probes[0]
	if get.Name != "GetRequest" || get.Protocol != ProtoTCP {
		t.Errorf("probe = %+v, want GetRequest/TCP", get)
	}
	if string(get.ProbeString) != "GET / HTTP/1.0\r\n\r\n" {
		t.Errorf("ProbeString = %q, want unescaped GET request", get.ProbeString)
	}
	if len(get.Matches) != 1 || get.Matches[0].Service != "http" {
		t.Fatalf("Matches = %+v", get.Matches)
	}
	if len(get.SoftMatches) != 1 {
		t.Fatalf("SoftMatches = %+v", get.SoftMatches)
	}
	if got := get.Ports; len(got) != 2 || got[0] != 80 || got[1] != 8080 {
		t.Errorf("Ports = %v, want [80 8080]", got)
	}
	if len(get.Fallback) != 1 || get.Fallback[0] != "NULL" {
		t.Errorf("Fallback = %v, want [NULL]", get.Fallback)
	}
}

func TestParsePortListExpandsRanges(t *testing.T) {
	ports, err := parsePortList("21,80,8000-8002")
	if err != nil {
		t.Fatalf("parsePortList() error = %v", err)
	}
	want := []uint16{21, 80, 8000, 8001, 8002}
	if len(ports) != len(want) {
		t.Fatalf("ports = %v, want %v", ports, want)
	}
	for i := range want {
		if ports[i] != want[i] {
			t.Errorf("ports[%d] = %d, want %d", i, ports[i], want[i])
		}
	}
}

func TestUnescapeProbeStringHandlesHexAndControlEscapes(t *testing.T) {
	got := unescapeProbeString(`\0\r\n\x41`)
	want := []byte{0, '\r', '\n', 'A'}
	if string(got) != string(want) {
		t.Errorf("unescapeProbeString() = %v, want %v", got, want)
	}
}

func TestDBIdentifyPrefersHardMatchAndAppliesFallback(t *testing.T) {
	db, errs, err := NewDB(strings.NewReader(sampleDB))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}

	get, ok := db.ByName("GetRequest")
	if !ok {
		t.Fatal("GetRequest probe not found")
	}

	id, ok := db.Identify(get, []byte("HTTP/1.1 200 OK\r\n"))
	if !ok || id.Service != "http" || id.Soft {
		t.Errorf("Identify() = %+v, ok=%v, want hard http match", id, ok)
	}

	// No response matching GetRequest's own patterns, but NULL's ssh match
	// does — exercises the fallback chain and the $1 backreference.
	id, ok = db.Identify(get, []byte("SSH-2.0-OpenSSH_9.3\r\n"))
	if !ok || id.Service != "ssh" {
		t.Fatalf("Identify() via fallback = %+v, ok=%v, want ssh match", id, ok)
	}
	if !strings.Contains(id.VersionInfo, "2.0") {
		t.Errorf("VersionInfo = %q, want $1 backreference substituted with 2.0", id.VersionInfo)
	}
}
