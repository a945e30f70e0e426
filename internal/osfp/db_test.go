package osfp

import (
	"strings"
	"testing"
)

const sampleOSDB = `# comment
MatchPoints SEQ#TI=2 WIN#W1=1

Fingerprint Linux 5.0 - 5.4
Class Linux | Linux | 5.X | general purpose
CPE cpe:/o:linux:linux_kernel:5
SEQ(SP=F-12%GCD=1-6%ISR=108-11C%TI=Z%CI=Z%II=I%TS=7-8)
OPS(O1=M5B4ST11NW6%O2=M5B4ST11NW6)
WIN(W1=FFFF%W2=FFFF)
ECN(R=Y%DF=Y%T=40-46%W=FFFF%O=M5B4NNSNW6%CC=Y%Q=)
T1(R=Y%DF=Y%T=40-46%S=O%A=S+%F=AS%RD=0%Q=)

Fingerprint Example Router
Class Example | embedded || general purpose
SEQ(SP=0-5%GCD=1%TI=I)
not-a-real-directive-line
`

func TestParseDBParsesFingerprintsAndMatchPoints(t *testing.T) {
	db, errs := ParseDB(strings.NewReader(sampleOSDB))

	if len(db.Fingerprints) != 2 {
		t.Fatalf("len(Fingerprints) = %d, want 2", len(db.Fingerprints))
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1 (the bogus directive line): %v", len(errs), errs)
	}

	linux := db.Fingerprints[0]
	if linux.Name != "Linux 5.0 - 5.4" {
		t.Errorf("Name = %q", linux.Name)
	}
	if !strings.Contains(linux.Class, "Linux") {
		t.Errorf("Class = %q", linux.Class)
	}
	if linux.CPE == "" {
		t.Error("expected a CPE line to be captured")
	}
	if linux.Tests["SEQ"] == "" || linux.Tests["T1"] == "" {
		t.Errorf("missing test bodies: %#v", linux.Tests)
	}

	if db.MatchPoints["SEQ"] != 2 {
		t.Errorf("MatchPoints[SEQ] = %d, want 2", db.MatchPoints["SEQ"])
	}
	if db.MatchPoints["WIN"] != 1 {
		t.Errorf("MatchPoints[WIN] = %d, want 1", db.MatchPoints["WIN"])
	}
}

func TestParseRuleBodySplitsPercentDelimitedFields(t *testing.T) {
	got := ParseRuleBody("SP=F-12%GCD=1-6%TI=Z")
	want := map[string]string{"SP": "F-12", "GCD": "1-6", "TI": "Z"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ParseRuleBody()[%q] = %q, want %q", k, got[k], v)
		}
	}
}
