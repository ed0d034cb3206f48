package token

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers refresh-token IDs that must no longer be
// exchanged, until their natural expiry.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	// AddIfAbsent revokes jti and reports whether this call did so. Exactly
	// one of several concurrent callers for the same jti gets true.
	AddIfAbsent(jti string, exp time.Time) bool
	IsRevoked(jti string) bool
	Cleanup(now time.Time) // Remove expired entries
}

// InMemoryRevokedTokenCache is a simple in-memory implementation
type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) AddIfAbsent(jti string, exp time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.revoked[jti]; exists {
		return false
	}
	c.revoked[jti] = exp
	return true
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

func (c *InMemoryRevokedTokenCache) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}
