package addr

import (
	"net"
	"sync"
	"sync/atomic"
)

// ARPCache holds resolved IP→MAC mappings for one interface. Per spec §5,
// it is single-writer (one resolver goroutine per interface) with
// lock-free reads via a copy-on-write snapshot swap, the same shape as the
// teacher's enrich.Cache but swapping an immutable map instead of mutating
// one under a lock, since resolutions here are rare compared to reads.
type ARPCache struct {
	snapshot atomic.Pointer[map[string]net.HardwareAddr]
	writeMu  sync.Mutex

	// inflight deduplicates concurrent resolutions for the same address so
	// that at most one ARP/ND exchange is in flight per (iface, addr) at a
	// time (§4.1).
	inflight   map[string]chan struct{}
	inflightMu sync.Mutex
}

// NewARPCache creates an empty cache.
func NewARPCache() *ARPCache {
	c := &ARPCache{inflight: make(map[string]chan struct{})}
	empty := make(map[string]net.HardwareAddr)
	c.snapshot.Store(&empty)
	return c
}

// Lookup returns the cached MAC for ip, if any.
func (c *ARPCache) Lookup(ip net.IP) (net.HardwareAddr, bool) {
	m := *c.snapshot.Load()
	mac, ok := m[ip.String()]
	return mac, ok
}

// Store records a resolved mapping, publishing a new snapshot so concurrent
// readers never observe a partially-updated map.
func (c *ARPCache) Store(ip net.IP, mac net.HardwareAddr) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := *c.snapshot.Load()
	next := make(map[string]net.HardwareAddr, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[ip.String()] = mac
	c.snapshot.Store(&next)
}

// Resolving registers that a resolution for ip is starting, returning a
// channel that is closed when it completes and a bool indicating whether
// the caller should actually perform the resolution (false means another
// goroutine is already resolving this address — wait on the returned
// channel instead). The leader signals completion by calling Done.
func (c *ARPCache) Resolving(ip net.IP) (wait <-chan struct{}, isLeader bool) {
	key := ip.String()

	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()

	if ch, ok := c.inflight[key]; ok {
		return ch, false
	}
	ch := make(chan struct{})
	c.inflight[key] = ch
	return ch, true
}

// Done signals waiters that a resolution for ip has finished.
func (c *ARPCache) Done(ip net.IP) {
	key := ip.String()

	c.inflightMu.Lock()
	ch, ok := c.inflight[key]
	if ok {
		delete(c.inflight, key)
	}
	c.inflightMu.Unlock()

	if ok {
		close(ch)
	}
}
