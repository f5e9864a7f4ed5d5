package oauth2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTokenCache_Empty(t *testing.T) {
	cache := NewTokenCache()

	_, ok := cache.Read()
	assert.False(t, ok)
	assert.True(t, cache.IsExpired(0))
	assert.True(t, cache.IsExpired(time.Minute))
}

func TestTokenCache_UpdateAndRead(t *testing.T) {
	clock := newFakeClock()
	cache := NewTokenCacheWithClock(clock.Now)

	cache.Update("abc", time.Hour)

	token, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, "abc", token.Value)
	assert.Equal(t, clock.now.Add(time.Hour), token.ExpiresAt)
}

func TestTokenCache_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		elapsed time.Duration
		margin  time.Duration
		want    bool
	}{
		{name: "fresh token", ttl: time.Hour, margin: time.Minute, want: false},
		{name: "outside margin", ttl: time.Hour, elapsed: 58 * time.Minute, margin: time.Minute, want: false},
		{name: "exactly at margin", ttl: time.Hour, elapsed: 59 * time.Minute, margin: time.Minute, want: true},
		{name: "inside margin", ttl: time.Hour, elapsed: 59*time.Minute + 30*time.Second, margin: time.Minute, want: true},
		{name: "past expiry", ttl: time.Hour, elapsed: 2 * time.Hour, want: true},
		{name: "ttl shorter than margin", ttl: 30 * time.Second, margin: time.Minute, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cache := NewTokenCacheWithClock(clock.Now)
			cache.Update("token", tt.ttl)
			clock.Advance(tt.elapsed)

			assert.Equal(t, tt.want, cache.IsExpired(tt.margin))
		})
	}
}

func TestTokenCache_UpdateOverwrites(t *testing.T) {
	clock := newFakeClock()
	cache := NewTokenCacheWithClock(clock.Now)

	cache.Update("first", time.Minute)
	clock.Advance(2 * time.Minute)
	cache.Update("second", time.Hour)

	token, ok := cache.Read()
	require.True(t, ok)
	assert.Equal(t, "second", token.Value)
	assert.False(t, cache.IsExpired(time.Minute))
}
