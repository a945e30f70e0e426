package osfp

import "testing"

func TestMatchFieldValueAlternatesRangesAndBounds(t *testing.T) {
	tests := []struct {
		name    string
		val     string
		pattern string
		want    bool
	}{
		{"exact match", "Z", "Z", true},
		{"exact mismatch", "Z", "I", false},
		{"alternative hit", "I", "Z|I|RD", true},
		{"alternative miss", "O", "Z|I|RD", false},
		{"hex range hit", "10", "8-20", true},
		{"hex range miss", "30", "8-20", false},
		{"greater-than hit", "21", ">20", true},
		{"greater-than miss", "1F", ">20", false},
		{"less-than hit", "5", "<10", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchFieldValue(tt.val, tt.pattern); got != tt.want {
				t.Errorf("matchFieldValue(%q, %q) = %v, want %v", tt.val, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestDBScoreWeighsMatchPoints(t *testing.T) {
	db := &DB{MatchPoints: map[string]int{"SEQ": 10, "WIN": 1}}
	fp := &Fingerprint{Tests: map[string]string{
		"SEQ": "TI=Z%GCD=1",
		"WIN": "W1=FFFF",
	}}

	target := map[string]string{
		"SEQ": "TI=Z%GCD=1", // matches, weight 10
		"WIN": "W1=0000",    // mismatches, weight 1
	}

	got := db.score(target, fp)
	want := 10.0 / 11.0 * 100.0
	if got < want-0.01 || got > want+0.01 {
		t.Errorf("score() = %v, want ~%v", got, want)
	}
}

func TestMatchSortsDescendingByAccuracy(t *testing.T) {
	db := &DB{
		Fingerprints: []*Fingerprint{
			{Name: "low", Tests: map[string]string{"SEQ": "TI=Z"}},
			{Name: "high", Tests: map[string]string{"SEQ": "TI=I"}},
		},
	}
	target := map[string]string{"SEQ": "TI=I"}

	results := db.Match(target)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Fingerprint.Name != "high" {
		t.Errorf("results[0].Name = %q, want high", results[0].Fingerprint.Name)
	}
	if results[0].Accuracy < results[1].Accuracy {
		t.Errorf("results not sorted descending: %v", results)
	}
}
