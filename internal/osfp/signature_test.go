package osfp

import (
	"testing"
	"time"
)

func TestGCDOfDeltasFindsCommonDivisor(t *testing.T) {
	got := gcdOfDeltas([]uint32{1000, 1006, 1012, 1018})
	if got != 6 {
		t.Errorf("gcdOfDeltas() = %d, want 6", got)
	}
}

func TestGCDOfDeltasTooFewSamples(t *testing.T) {
	if got := gcdOfDeltas([]uint32{42}); got != 0 {
		t.Errorf("gcdOfDeltas() = %d, want 0", got)
	}
}

func TestClassifyIPIDSequence(t *testing.T) {
	tests := []struct {
		name string
		ids  []uint32
		want string
	}{
		{"all zero", []uint32{0, 0, 0}, "Z"},
		{"incrementing by one", []uint32{100, 101, 102, 103}, "I"},
		{"incrementing by 256 (byte swapped)", []uint32{256, 512, 768}, "BI"},
		{"scattered", []uint32{5, 40000, 12, 55000}, "RD"},
		{"single sample", []uint32{7}, "O"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyIPIDSequence(tt.ids); got != tt.want {
				t.Errorf("classifyIPIDSequence(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}
}

func TestClassifyTimestampsNoOptionMeansUnsupported(t *testing.T) {
	seqs := []seqObservation{{got: true, hasTS: false}, {got: true, hasTS: false}}
	if got := classifyTimestamps(seqs); got != "U" {
		t.Errorf("classifyTimestamps() = %q, want U", got)
	}
}

func TestClassifyTimestampsConstantZero(t *testing.T) {
	now := time.Unix(1700000000, 0)
	seqs := []seqObservation{
		{got: true, hasTS: true, tsval: 0, sentAt: now},
		{got: true, hasTS: true, tsval: 0, sentAt: now.Add(time.Second)},
	}
	if got := classifyTimestamps(seqs); got != "0" {
		t.Errorf("classifyTimestamps() = %q, want 0", got)
	}
}

func TestToTestMapRoundTripsThroughParseRuleBody(t *testing.T) {
	sig := Signature{
		TI: "I", II: "Z", TS: "7",
		Options: [6]string{"M5B4", "M5B4", "M5B4", "M5B4", "M5B4", "M5B4"},
		Windows: [6]uint16{1, 2, 3, 4, 5, 6},
	}
	sig.T[0] = TCPProbeResponse{Got: true, TTL: 64, SeqRel: "A", AckRel: "Z"}

	tests := sig.ToTestMap()
	seqFields := ParseRuleBody(tests["SEQ"])
	if seqFields["TI"] != "I" {
		t.Errorf("SEQ.TI = %q, want I", seqFields["TI"])
	}

	t1Fields := ParseRuleBody(tests["T1"])
	if t1Fields["R"] != "Y" {
		t.Errorf("T1.R = %q, want Y", t1Fields["R"])
	}
	if t1Fields["T"] != "40" {
		t.Errorf("T1.T = %q, want 40 (hex 64)", t1Fields["T"])
	}
}
