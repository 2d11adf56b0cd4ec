package conn

import "sync"

// HostCache remembers the last mailbox host that accepted a login for each
// domain. Shared by every worker of a batch; purely an optimization table.
// Entries may be stale, so every lookup path still falls through to the
// remaining candidates when the cached host fails.
type HostCache struct {
	mu    sync.Mutex
	hosts map[string]string
}

// NewHostCache creates an empty cache.
func NewHostCache() *HostCache {
	return &HostCache{hosts: make(map[string]string)}
}

// Get returns the last working host for the domain, or "".
func (h *HostCache) Get(domain string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hosts[domain]
}

// Set remembers the host that just accepted a login for the domain.
func (h *HostCache) Set(domain, host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hosts[domain] = host
}

// Forget drops the entry for the domain if it still points at host.
func (h *HostCache) Forget(domain, host string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hosts[domain] == host {
		delete(h.hosts, domain)
	}
}
