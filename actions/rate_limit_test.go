package actions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

func TestCallerLimiterEvictsIdleBuckets(t *testing.T) {
	clock := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	limiter := newCallerLimiter(config.RateLimitConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	require.NotNil(t, limiter)
	limiter.now = func() time.Time { return clock }
	limiter.lastSweep = clock

	for id := uint64(1); id <= 100; id++ {
		assert.True(t, limiter.allow(id))
	}
	assert.Equal(t, 100, limiter.size())
	assert.False(t, limiter.allow(7), "second request within the same second")

	clock = clock.Add(30 * time.Second)
	assert.True(t, limiter.allow(7))
	assert.Equal(t, 100, limiter.size())

	clock = clock.Add(40 * time.Second)
	assert.True(t, limiter.allow(8))
	assert.Equal(t, 2, limiter.size(), "only the callers seen within the ttl remain")

	clock = clock.Add(2 * time.Minute)
	assert.True(t, limiter.allow(9))
	assert.Equal(t, 1, limiter.size())
}

func TestCallerLimiterDisabled(t *testing.T) {
	assert.Nil(t, newCallerLimiter(config.RateLimitConfig{}))
}
