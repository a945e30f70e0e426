package scan

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
	"github.com/KilimcininKorOglu/trident/internal/serviceprobes"
)

func TestIdentifyServicesMatchesBannerFromNullProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("SSH-2.0-OpenSSH_9.3\r\n"))
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	db, errs, err := serviceprobes.NewDB(strings.NewReader(
		"Probe TCP NULL q||\n" +
			"rarity 1\n" +
			"match ssh m|^SSH-([\\d.]+)-| p/OpenSSH/ v/$1/\n"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}

	rs := result.NewTCPUDPScanResults(net.ParseIP("127.0.0.1"))
	rs.Results[uint16(port)] = result.Open
	results := map[string]*result.TCPUDPScanResults{"127.0.0.1": rs}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if errs := IdentifyServices(ctx, results, db, 4, time.Second); len(errs) != 0 {
		t.Fatalf("IdentifyServices() errors = %v", errs)
	}

	match, ok := rs.Services[uint16(port)]
	if !ok {
		t.Fatal("expected a service match for the listening port")
	}
	if match.Service != "ssh" {
		t.Errorf("Service = %q, want ssh", match.Service)
	}
}
