package oauth2

import (
	"sync"
	"time"
)

// CachedToken is a bearer token together with the instant it stops being valid.
type CachedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenCache holds at most one token. It is overwritten on every successful
// exchange and never evicted otherwise.
type TokenCache struct {
	mu    sync.RWMutex
	token *CachedToken
	now   func() time.Time
}

// NewTokenCache creates an empty cache using the wall clock.
func NewTokenCache() *TokenCache {
	return NewTokenCacheWithClock(time.Now)
}

// NewTokenCacheWithClock creates an empty cache reading time from now.
func NewTokenCacheWithClock(now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{now: now}
}

// Read returns the cached token, if any.
func (c *TokenCache) Read() (CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return CachedToken{}, false
	}
	return *c.token, true
}

// IsExpired reports whether the cache is empty or the token expires within margin.
func (c *TokenCache) IsExpired(margin time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return true
	}
	return !c.now().Add(margin).Before(c.token.ExpiresAt)
}

// Update stores value with an expiry ttl from now.
func (c *TokenCache) Update(value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = &CachedToken{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}
