package osfp

import (
	"context"
	"math/rand"
	"net"

	"github.com/KilimcininKorOglu/trident/internal/packet"
	"github.com/KilimcininKorOglu/trident/internal/transport"
)

// Target names the host and ports the probe battery is run against. An
// OS-detection attempt needs one known-open and one known-closed TCP port
// (spec §4.8), typically supplied from a prior port scan's results.
type Target struct {
	Addr       net.IP
	OpenPort   uint16
	ClosedPort uint16
}

// Fingerprint runs the full probe battery against target over sock and
// scores the resulting signature against db, returning the top candidates
// sorted best-first (callers slice to however many they want to report).
func Fingerprint(ctx context.Context, sock *transport.Layer3Socket, src net.IP, target Target, db *DB) ([]MatchResult, Signature, error) {
	var seqs [6]seqObservation
	for i, spec := range seqSpecs {
		seqs[i] = sendSeqProbe(ctx, sock, src, target.Addr, target.OpenPort, spec)
		if ctx.Err() != nil {
			return nil, Signature{}, ctx.Err()
		}
	}

	ecn := sendECNProbe(ctx, sock, src, target.Addr, target.OpenPort)

	var t [7]TCPProbeResponse
	t[0] = sendTCPTest(ctx, sock, src, target.Addr, target.OpenPort, packet.FlagSYN, 1, winScaleMSSOptions())
	t[1] = sendTCPTest(ctx, sock, src, target.Addr, target.OpenPort, 0, 128, nil)
	t[2] = sendTCPTest(ctx, sock, src, target.Addr, target.OpenPort, packet.FlagSYN|packet.FlagFIN|packet.FlagURG|packet.FlagPSH, 256, nil)
	t[3] = sendTCPTest(ctx, sock, src, target.Addr, target.OpenPort, packet.FlagACK, 1024, nil)
	t[4] = sendTCPTest(ctx, sock, src, target.Addr, target.ClosedPort, packet.FlagSYN, 31337, nil)
	t[5] = sendTCPTest(ctx, sock, src, target.Addr, target.ClosedPort, packet.FlagACK, 32768, nil)
	t[6] = sendTCPTest(ctx, sock, src, target.Addr, target.ClosedPort, packet.FlagFIN|packet.FlagPSH|packet.FlagURG, 65535, nil)

	u1 := sendUDPClosedProbe(ctx, sock, src, target.Addr, target.ClosedPort)

	id := uint16(rand.Intn(0xffff))
	payload := packet.TimestampPayload(make([]byte, 120))
	ieResp1, ipid1, _, got1 := sendICMPEcho(ctx, sock, src, target.Addr, id, 295, payload, 0, true)
	_, ipid2, code2, got2 := sendICMPEcho(ctx, sock, src, target.Addr, id, 296, payload, 4, false)

	ie := ICMPProbeResponse{}
	var ieIPIDs [2]uint16
	if got1 {
		ie.Got, ie.DFI = true, ieResp1.DFI
		ieIPIDs[0] = ipid1
	}
	if got1 && got2 {
		ie.Code0 = code2 == 0
		ieIPIDs[1] = ipid2
	}

	sig := buildSignature(seqs, ecn, t, u1, ie, ieIPIDs)
	results := db.Match(sig.ToTestMap())
	return results, sig, nil
}

// winScaleMSSOptions is the T1 option set: window scale plus MSS, the
// combination nmap's T1 test probes a listening port with.
func winScaleMSSOptions() []byte {
	return padOptions(packet.TCPOptionWindowScale(10), packet.TCPOptionMSS(265))
}

// sendECNProbe sends nmap's ECN-support probe: a SYN with the congestion-
// control bits (ECE, CWR) set alongside the window/option combination real
// stacks vary their ECN handling on.
func sendECNProbe(ctx context.Context, sock *transport.Layer3Socket, src, dst net.IP, openPort uint16) TCPProbeResponse {
	return sendTCPTest(ctx, sock, src, dst, openPort, packet.FlagSYN|packet.FlagECE|packet.FlagCWR, 3, padOptions(packet.TCPOptionWindowScale(10), packet.TCPOptionMSS(1460), packet.TCPOptionSACKPermitted()))
}

// DefaultContext builds a context bounded by a reasonable whole-battery
// timeout: six SEQ probes with a possible single retransmit each, plus the
// rest of the fixed-size battery, at probeTimeout per wait.
func DefaultContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 20*probeTimeout)
}
