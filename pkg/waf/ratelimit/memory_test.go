package ratelimit

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLimiter(cfg Config) *MemoryLimiter {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewMemoryLimiter(logger, cfg)
}

func TestWindowLimitEnforced(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 5, Window: time.Minute, BlockDuration: 5 * time.Minute})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Check(ctx, "ip:203.0.113.1:/login")
		assert.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should pass", i)
		assert.Equal(t, 5-(i+1), d.Remaining)
	}

	d, err := l.Check(ctx, "ip:203.0.113.1:/login")
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 5*time.Minute, d.RetryAfter)
	assert.Zero(t, d.Remaining)
}

func TestBlockShortCircuitsThenResets(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 2, Window: time.Minute, BlockDuration: 5 * time.Minute})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Check(ctx, "k") //nolint:errcheck
	}

	// every request during the block is rejected with a shrinking retry
	clock = clock.Add(2 * time.Minute)
	d, _ := l.Check(ctx, "k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 3*time.Minute, d.RetryAfter)

	// after the block elapses the entry starts fresh
	clock = clock.Add(4 * time.Minute)
	d, _ = l.Check(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestOldTimestampsPruned(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 3, Window: time.Minute, BlockDuration: time.Minute})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, _ := l.Check(ctx, "k")
		assert.True(t, d.Allowed)
	}

	// the window slid past the earlier requests, so capacity is back
	clock = clock.Add(2 * time.Minute)
	d, _ := l.Check(ctx, "k")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestPerCallLimitOverridesDefaults(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 100, Window: time.Hour, BlockDuration: 5 * time.Minute})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.CheckWithLimit(ctx, "tenant:strict:203.0.113.1", 2, time.Minute)
		assert.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Limit)
	}

	d, err := l.CheckWithLimit(ctx, "tenant:strict:203.0.113.1", 2, time.Minute)
	assert.NoError(t, err)
	assert.False(t, d.Allowed, "the per-call limit applies, not the configured default")

	// non-positive values fall back to the configured defaults
	d, err = l.CheckWithLimit(ctx, "tenant:lax:203.0.113.1", 0, 0)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 100, d.Limit)
}

func TestStoreCapEvictsOldestNonBlocked(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 1, Window: time.Minute, BlockDuration: 10 * time.Minute, StoreCap: 3})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	// a blocked entry is never the eviction victim
	l.Check(ctx, "blocked") //nolint:errcheck
	l.Check(ctx, "blocked") //nolint:errcheck

	clock = clock.Add(time.Second)
	l.Check(ctx, "a") //nolint:errcheck
	clock = clock.Add(time.Second)
	l.Check(ctx, "b") //nolint:errcheck

	clock = clock.Add(time.Second)
	l.Check(ctx, "c") //nolint:errcheck

	assert.Equal(t, 3, l.Len())
	d, _ := l.Check(ctx, "blocked")
	assert.False(t, d.Allowed)
}

func TestSweepDropsIdleEntries(t *testing.T) {
	l := testLimiter(Config{MaxRequests: 10, Window: time.Minute, BlockDuration: time.Minute})
	clock := time.Now()
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Check(ctx, fmt.Sprintf("key-%d", i)) //nolint:errcheck
	}
	assert.Equal(t, 5, l.Len())

	clock = clock.Add(10 * time.Minute)
	l.mu.Lock()
	l.sweepLocked(clock)
	l.mu.Unlock()

	assert.Equal(t, 0, l.Len())
}
