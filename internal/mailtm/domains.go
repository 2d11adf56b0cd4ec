package mailtm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type wireDomain struct {
	Domain string `json:"domain"`
}

type domainList struct {
	Members []wireDomain `json:"hydra:member"`
}

// DomainCache is the lazily loaded set of domains served by the REST mail
// API. Process-wide: many workers read it concurrently while a refresh may
// replace the set. The lock guards only the swap, never the listing call,
// so stale reads during a refresh are possible and acceptable.
type DomainCache struct {
	client *Client
	logger *logrus.Logger

	mu      sync.RWMutex
	domains map[string]struct{}
	loaded  bool
}

// NewDomainCache creates an empty cache backed by the given client.
func NewDomainCache(client *Client, logger *logrus.Logger) *DomainCache {
	return &DomainCache{
		client:  client,
		logger:  logger,
		domains: make(map[string]struct{}),
	}
}

// Load returns the cached domain set, fetching it on first use or when
// forced. On failure it returns the previous set (possibly empty) without
// an error: an empty set means "unknown, assume not REST-served".
func (d *DomainCache) Load(ctx context.Context, force bool) map[string]struct{} {
	d.mu.RLock()
	loaded := d.loaded
	current := d.domains
	d.mu.RUnlock()

	if loaded && !force {
		return current
	}

	fresh, err := d.fetch(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to load REST mail domains")
		return current
	}

	d.mu.Lock()
	d.domains = fresh
	d.loaded = true
	d.mu.Unlock()

	d.logger.WithField("count", len(fresh)).Info("Loaded REST mail domains")
	return fresh
}

// Contains reports whether the domain is known to be served by the REST API.
// The suffix rule keeps brand-new subdomains of the provider usable before
// the directory lists them.
func (d *DomainCache) Contains(domain string) bool {
	domain = strings.ToLower(domain)

	d.mu.RLock()
	_, ok := d.domains[domain]
	d.mu.RUnlock()

	return ok || strings.HasSuffix(domain, "mail.tm")
}

func (d *DomainCache) fetch(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.client.baseURL+"/domains", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build domains request: %w", err)
	}

	resp, err := d.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("domains listing failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("domains listing returned status %d", resp.StatusCode)
	}

	var list domainList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode domains listing: %w", err)
	}

	domains := make(map[string]struct{}, len(list.Members))
	for _, m := range list.Members {
		if m.Domain != "" {
			domains[strings.ToLower(m.Domain)] = struct{}{}
		}
	}
	return domains, nil
}
