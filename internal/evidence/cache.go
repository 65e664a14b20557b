package evidence

import (
	"context"
	"sync"
	"time"

	"github.com/banking/dnfbp-risk/internal/domain"
	"github.com/banking/dnfbp-risk/internal/metrics"
)

// TokenCache is the process-lifetime store brokering access to evidence
// bundles. Entries are inserted once and evicted lazily on the first read
// after expiry. Bundles that are never read again stay in memory until
// Sweep runs; StartJanitor runs it periodically.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]domain.CachedEvidence
	now     func() time.Time
}

// CacheOption configures a TokenCache
type CacheOption func(*TokenCache)

// WithClock overrides the time source
func WithClock(now func() time.Time) CacheOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

// NewTokenCache creates an empty cache
func NewTokenCache(opts ...CacheOption) *TokenCache {
	c := &TokenCache{
		entries: make(map[string]domain.CachedEvidence),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put registers a bundle under token, expiring ttl from now
func (c *TokenCache) Put(token string, archive []byte, manifest domain.EvidenceManifest, ttl time.Duration) (time.Time, error) {
	if token == "" {
		return time.Time{}, ErrEmptyToken
	}
	if ttl <= 0 {
		return time.Time{}, ErrInvalidTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[token]; exists {
		return time.Time{}, ErrTokenExists
	}
	expiresAt := c.now().Add(ttl)
	c.entries[token] = domain.CachedEvidence{
		Archive:   archive,
		Manifest:  manifest,
		ExpiresAt: expiresAt,
	}
	metrics.EvidenceCacheEntries.Set(float64(len(c.entries)))
	return expiresAt, nil
}

// PutMinutes is Put with the ttl expressed in whole minutes
func (c *TokenCache) PutMinutes(token string, archive []byte, manifest domain.EvidenceManifest, ttlMinutes int) (time.Time, error) {
	return c.Put(token, archive, manifest, time.Duration(ttlMinutes)*time.Minute)
}

// Get returns the bundle for token while now <= expiry. An expired entry is
// evicted and reported as not found; it never comes back. Callers must not
// modify the returned archive bytes.
func (c *TokenCache) Get(token string) (domain.CachedEvidence, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		metrics.EvidenceLookupsTotal.WithLabelValues("miss").Inc()
		return domain.CachedEvidence{}, false
	}
	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, token)
		metrics.EvidenceCacheEntries.Set(float64(len(c.entries)))
		metrics.EvidenceLookupsTotal.WithLabelValues("expired").Inc()
		return domain.CachedEvidence{}, false
	}
	metrics.EvidenceLookupsTotal.WithLabelValues("hit").Inc()
	return entry, true
}

// Len returns the number of stored entries, expired or not
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts every expired entry and returns how many were removed
func (c *TokenCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for token, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, token)
			removed++
		}
	}
	metrics.EvidenceCacheEntries.Set(float64(len(c.entries)))
	return removed
}

// StartJanitor sweeps every interval until ctx is done. A non-positive
// interval disables the janitor.
func (c *TokenCache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
