package resolver

import (
	"net"
	"sync"
	"time"

	"github.com/wisp-gateway/wispd/internal/clock"
)

type cacheEntry struct {
	addr       net.IP
	err        error
	insertedAt time.Time
}

// cache is a hostname-keyed cache with TTL eviction performed as a bulk
// pass at call time (§4.3), guarded by a mutex since the process-wide
// resolver façade is shared across every connection's goroutines (§5:
// "implementations on preemptively-scheduled runtimes must guard it with a
// mutex").
type cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]cacheEntry
}

func newCache(ttl time.Duration, c clock.Clock) *cache {
	return &cache{ttl: ttl, clock: c, entries: make(map[string]cacheEntry)}
}

// evictExpired removes every entry older than ttl. Called with the lock
// held, at the start of every lookup.
func (c *cache) evictExpired() {
	now := c.clock.Now()
	for host, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, host)
		}
	}
}

func (c *cache) get(hostname string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	entry, ok := c.entries[hostname]
	return entry, ok
}

func (c *cache) set(hostname string, addr net.IP, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hostname] = cacheEntry{addr: addr, err: err, insertedAt: c.clock.Now()}
}
