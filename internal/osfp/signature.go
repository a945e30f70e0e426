package osfp

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// buildSignature reduces six seqObservations plus the rest of the probe
// battery into the Signature vector spec §4.8 describes.
func buildSignature(seqs [6]seqObservation, ecn TCPProbeResponse, t [7]TCPProbeResponse, u1 ICMPLikeUDPResponse, ie ICMPProbeResponse, ieIPIDs [2]uint16) Signature {
	sig := Signature{ECN: ecn, T: t, U1: u1, IE: ie}

	var isns, ipids []uint32
	for i, o := range seqs {
		sig.Windows[i] = o.window
		sig.Options[i] = o.options
		if o.got {
			isns = append(isns, o.isn)
			ipids = append(ipids, uint32(o.ipid))
		}
	}

	sig.GCD = gcdOfDeltas(isns)
	sig.ISR = isrFromObservations(seqs[:])
	sig.SP = spFromObservations(seqs[:], sig.GCD)
	sig.TI = classifyIPIDSequence(ipids)
	sig.II = classifyIPIDSequence(toU32(ieIPIDs[:]))
	sig.TS = classifyTimestamps(seqs[:])

	return sig
}

func toU32(in []uint16) []uint32 {
	out := make([]uint32, len(in))
	for i, v := range in {
		out[i] = uint32(v)
	}
	return out
}

// gcdOfDeltas returns the greatest common divisor of the successive
// differences between a sequence of 32-bit counters that may wrap, the
// same "GCD of ISN deltas" nmap-os-db's SEQ test records.
func gcdOfDeltas(values []uint32) uint32 {
	if len(values) < 2 {
		return 0
	}
	var g uint32
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d == 0 {
			continue
		}
		g = gcd(g, d)
	}
	return g
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// isrFromObservations estimates nmap's ISR field: the average rate of ISN
// increase, expressed on nmap's own log2-of-(increase-per-second)*8 scale.
func isrFromObservations(seqs []seqObservation) uint32 {
	var first, last *seqObservation
	var firstIdx, lastIdx int
	for i := range seqs {
		if !seqs[i].got {
			continue
		}
		if first == nil {
			first, firstIdx = &seqs[i], i
		}
		last, lastIdx = &seqs[i], i
	}
	if first == nil || last == nil || firstIdx == lastIdx {
		return 0
	}

	elapsed := last.sentAt.Sub(first.sentAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	delta := float64(last.isn - first.isn)
	ratePerSec := delta / elapsed
	if ratePerSec <= 0 {
		return 0
	}
	return uint32(math.Round(math.Log2(ratePerSec) * 8))
}

// spFromObservations estimates nmap's SP field: an index of how far the
// observed ISN deltas vary from a perfectly steady increase, again on the
// log2*8 scale nmap-os-db stores every SEQ-group numeric field on.
func spFromObservations(seqs []seqObservation, gcdVal uint32) uint32 {
	var deltas []float64
	var prev *seqObservation
	divisor := float64(gcdVal)
	if divisor == 0 {
		divisor = 1
	}
	for i := range seqs {
		if !seqs[i].got {
			continue
		}
		if prev != nil {
			d := float64(seqs[i].isn-prev.isn) / divisor
			deltas = append(deltas, d)
		}
		prev = &seqs[i]
	}
	if len(deltas) < 2 {
		return 0
	}

	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	stddev := math.Sqrt(variance)
	if stddev <= 0 {
		return 0
	}
	return uint32(math.Round(math.Log2(stddev) * 8))
}

// classifyIPIDSequence buckets a run of observed IP IDs into nmap-os-db's
// TI/II vocabulary: "Z" all zero, "RD" random-looking, "BI" incrementing in
// broken-endian (by 256) steps, "I" incrementing by one, "O" anything else.
func classifyIPIDSequence(ids []uint32) string {
	if len(ids) == 0 {
		return "O"
	}
	allZero := true
	for _, v := range ids {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "Z"
	}
	if len(ids) < 2 {
		return "O"
	}

	incrByOne, incrBy256 := true, true
	for i := 1; i < len(ids); i++ {
		d := ids[i] - ids[i-1]
		if d != 1 {
			incrByOne = false
		}
		if d != 256 {
			incrBy256 = false
		}
	}
	switch {
	case incrByOne:
		return "I"
	case incrBy256:
		return "BI"
	}

	sorted := append([]uint32(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	spread := sorted[len(sorted)-1] - sorted[0]
	if spread > 20000 {
		return "RD"
	}
	return "O"
}

// classifyTimestamps buckets the TCP timestamp option's observed tick rate
// into nmap-os-db's TS vocabulary: "U" no target supports the option, "0"
// it echoes a constant zero, or the rounded log2 of the tick rate in Hz
// otherwise, in decimal (a ~1Hz clock gives "0", ~100Hz "7", ~1000Hz
// "10").
func classifyTimestamps(seqs []seqObservation) string {
	var withTS []seqObservation
	for _, o := range seqs {
		if o.got && o.hasTS {
			withTS = append(withTS, o)
		}
	}
	if len(withTS) == 0 {
		return "U"
	}

	allZero := true
	for _, o := range withTS {
		if o.tsval != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return "0"
	}
	if len(withTS) < 2 {
		return "U"
	}

	first, last := withTS[0], withTS[len(withTS)-1]
	elapsed := last.sentAt.Sub(first.sentAt).Seconds()
	if elapsed <= 0 {
		return "U"
	}
	hz := float64(last.tsval-first.tsval) / elapsed
	if hz <= 0 {
		return "U"
	}
	return fmt.Sprintf("%d", int(math.Round(math.Log2(hz))))
}

// ToTestMap renders sig into the same "%"-delimited KEY=value test bodies
// nmap-os-db fingerprints use, so DB.Match can compare it against parsed
// rules with the same matchTestBody/matchFieldValue logic either side uses.
func (sig Signature) ToTestMap() map[string]string {
	tests := map[string]string{
		"SEQ": joinFields(map[string]string{
			"SP":  hexField(sig.SP),
			"GCD": hexField(sig.GCD),
			"ISR": hexField(sig.ISR),
			"TI":  sig.TI,
			"II":  sig.II,
			"TS":  sig.TS,
		}),
		"OPS": joinFields(map[string]string{
			"O1": sig.Options[0], "O2": sig.Options[1], "O3": sig.Options[2],
			"O4": sig.Options[3], "O5": sig.Options[4], "O6": sig.Options[5],
		}),
		"WIN": joinFields(map[string]string{
			"W1": hexField(uint32(sig.Windows[0])), "W2": hexField(uint32(sig.Windows[1])),
			"W3": hexField(uint32(sig.Windows[2])), "W4": hexField(uint32(sig.Windows[3])),
			"W5": hexField(uint32(sig.Windows[4])), "W6": hexField(uint32(sig.Windows[5])),
		}),
		"ECN": tcpRespFields(sig.ECN),
		"IE":  joinFields(map[string]string{"R": boolField(sig.IE.Got), "DFI": sig.IE.DFI}),
		"U1": joinFields(map[string]string{
			"R": boolField(sig.U1.Got), "DF": boolField(sig.U1.DF), "RIPCK": sig.U1.RipCK,
		}),
	}
	for i, resp := range sig.T {
		tests[fmt.Sprintf("T%d", i+1)] = tcpRespFields(resp)
	}
	return tests
}

func tcpRespFields(r TCPProbeResponse) string {
	return joinFields(map[string]string{
		"R": boolField(r.Got), "DF": boolField(r.DF), "T": hexField(uint32(r.TTL)),
		"W": hexField(uint32(r.Window)), "O": r.Options, "S": r.SeqRel, "A": r.AckRel,
	})
}

func joinFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, "%")
}

func hexField(v uint32) string {
	return fmt.Sprintf("%X", v)
}

func boolField(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
