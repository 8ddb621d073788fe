package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/gorelay/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newLimiterWithClock(burst int, interval time.Duration) (*rateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(config.RateLimitConfig{Burst: burst, RefillInterval: interval})
	rl.now = clock.Now
	rl.lastCheck = clock.Now()
	return rl, clock
}

func TestRateLimiterBurst(t *testing.T) {
	rl, _ := newLimiterWithClock(3, time.Second)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "burst exhausted")
}

func TestRateLimiterRefill(t *testing.T) {
	rl, clock := newLimiterWithClock(2, time.Second)

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	clock.Advance(500 * time.Millisecond)
	assert.True(t, rl.allow(), "half the interval refills one of two tokens")
	assert.False(t, rl.allow())

	clock.Advance(time.Hour)
	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow(), "refill is capped at burst")
}

func TestRateLimiterSanitizesConfig(t *testing.T) {
	rl, _ := newLimiterWithClock(0, 0)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}
