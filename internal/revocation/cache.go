package revocation

import (
	"sync"
	"time"
)

type Reason string

const (
	RoleChanged Reason = "role_changed"
	Invalidated Reason = "invalidated"
)

type entry struct {
	reason    Reason
	expiresAt time.Time
}

// Cache is the process-wide revocation list consulted on every request.
// Entries outlive the access tokens they revoke: each entry carries an
// explicit TTL that must be at least the access-token lifetime, after which
// the token has expired on its own and the entry is garbage.
//
// The cache is in-process only. In a multi-instance deployment revocation
// would need a shared external store, the database stays the authoritative
// record either way.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Revoke marks the given jti as revoked for the cache TTL.
func (c *Cache) Revoke(jti string, reason Reason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[jti] = entry{reason: reason, expiresAt: time.Now().Add(c.ttl)}
}

// Reason reports whether jti is revoked and why.
func (c *Cache) Reason(jti string) (Reason, bool) {
	c.mu.RLock()
	e, ok := c.entries[jti]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.reason, true
}

func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) janitor() {
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep(time.Now())
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, jti)
		}
	}
}
