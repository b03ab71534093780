// Package oauth fetches and caches OAuth 2.0 client-credentials access tokens
// for carrier APIs.
package oauth

import (
	"context"
	"sync"
	"time"
)

// TokenCache stores access tokens keyed by client id. Implementations are safe
// for concurrent use and treat expired entries as absent.
type TokenCache interface {
	// TryGetToken returns the cached token for clientID, if present and unexpired.
	TryGetToken(ctx context.Context, clientID string) (string, bool)

	// AddToken stores token for clientID for ttl. A non-positive ttl stores nothing.
	AddToken(ctx context.Context, clientID, token string, ttl time.Duration) error
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is an in-process TokenCache. Expired entries are evicted lazily
// on access.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]cachedToken
	now    func() time.Time
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an empty in-memory token cache.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		tokens: make(map[string]cachedToken),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryGetToken implements TokenCache.
func (c *MemoryCache) TryGetToken(_ context.Context, clientID string) (string, bool) {
	c.mu.RLock()
	tok, ok := c.tokens[clientID]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if !c.now().Before(tok.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent AddToken may have refreshed the entry.
		if cur, ok := c.tokens[clientID]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.tokens, clientID)
		}
		c.mu.Unlock()
		return "", false
	}
	return tok.value, true
}

// AddToken implements TokenCache.
func (c *MemoryCache) AddToken(_ context.Context, clientID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[clientID] = cachedToken{value: token, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

var _ TokenCache = (*MemoryCache)(nil)
