package osfp

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/KilimcininKorOglu/trident/internal/transport"
)

const miniOSDB = `Fingerprint Test OS
Class Test | test | 1.X | general purpose
SEQ(SP=0-FF%GCD=0-FF%ISR=0-FF%TI=Z|I|RD|BI|O%II=Z|I|RD|BI|O%TS=U|0|1|7|8)
OPS(O1=%O2=%O3=%O4=%O5=%O6=)
WIN(W1=0-FFFF%W2=0-FFFF%W3=0-FFFF%W4=0-FFFF%W5=0-FFFF%W6=0-FFFF)
T1(R=Y|N%DF=Y|N%T=0-FF)
`

func TestFingerprintAgainstLoopbackListener(t *testing.T) {
	if !canOpenRawIPSocketOSFP() {
		t.Skip("Skipping: requires elevated privileges")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, openPortStr, _ := net.SplitHostPort(ln.Addr().String())

	closedLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	_, closedPortStr, _ := net.SplitHostPort(closedLn.Addr().String())
	closedLn.Close()

	sock, err := transport.OpenLayer3Socket(transport.IPv4)
	if err != nil {
		t.Fatalf("OpenLayer3Socket() error = %v", err)
	}
	defer sock.Close()

	db, errs := ParseDB(strings.NewReader(miniOSDB))
	if len(errs) != 0 {
		t.Fatalf("ParseDB() errs = %v", errs)
	}

	target := Target{Addr: net.ParseIP("127.0.0.1"), OpenPort: parsePort(t, openPortStr), ClosedPort: parsePort(t, closedPortStr)}

	ctx, cancel := DefaultContext(context.Background())
	defer cancel()

	results, sig, err := Fingerprint(ctx, sock, net.ParseIP("127.0.0.1"), target, db)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if len(results) != len(db.Fingerprints) {
		t.Errorf("len(results) = %d, want %d", len(results), len(db.Fingerprints))
	}
	if !sig.T[0].Got {
		t.Error("expected T1 to observe a reply from the loopback stack's open port")
	}
}

func parsePort(t *testing.T, s string) uint16 {
	t.Helper()
	var p int
	for _, c := range s {
		p = p*10 + int(c-'0')
	}
	return uint16(p)
}

func canOpenRawIPSocketOSFP() bool {
	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
