package techniques

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/KilimcininKorOglu/trident/internal/result"
)

// ConnectScan uses the OS connect() syscall (via net.Dialer) instead of raw
// packets, the one TCP technique that needs no elevated privilege: a
// successful connect means Open, ECONNREFUSED means Closed, and a timeout
// or any other dial error means Filtered.
func ConnectScan(ctx context.Context, dst net.IP, dstPort uint16, timeout time.Duration) (result.PortStatus, *time.Duration, error) {
	dialer := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(dst.String(), strconv.Itoa(int(dstPort)))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err == nil {
		rtt := time.Since(start)
		conn.Close()
		return result.Open, &rtt, nil
	}

	if isConnRefused(err) {
		return result.Closed, nil, nil
	}
	return result.Filtered, nil, nil
}
