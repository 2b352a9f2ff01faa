package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultStoreCap = 10000
	sweepChance     = 0.01
)

// Config tunes the in-memory limiter.
type Config struct {
	MaxRequests   int
	Window        time.Duration
	BlockDuration time.Duration
	StoreCap      int
}

type entry struct {
	timestamps   []time.Time
	blocked      bool
	blockedUntil time.Time
	lastSeen     time.Time
}

// MemoryLimiter is a per-key sliding window held in process memory. A key
// that exceeds the window limit is blocked for a fixed duration and every
// request during the block short-circuits; when the block elapses the entry
// resets cleanly. Entry count is capped, oldest non-blocked entries are
// evicted first.
type MemoryLimiter struct {
	logger *logrus.Logger
	cfg    Config

	mu      sync.Mutex
	entries map[string]*entry
	rng     *rand.Rand
	now     func() time.Time
}

func NewMemoryLimiter(logger *logrus.Logger, cfg Config) *MemoryLimiter {
	if cfg.StoreCap <= 0 {
		cfg.StoreCap = defaultStoreCap
	}
	return &MemoryLimiter{
		logger:  logger,
		cfg:     cfg,
		entries: make(map[string]*entry),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Check(ctx context.Context, key string) (Decision, error) {
	return l.CheckWithLimit(ctx, key, l.cfg.MaxRequests, l.cfg.Window)
}

// CheckWithLimit runs the window check with per-call limits, used for keys
// whose tenant policy overrides the configured defaults.
func (l *MemoryLimiter) CheckWithLimit(_ context.Context, key string, maxRequests int, window time.Duration) (Decision, error) {
	if maxRequests <= 0 {
		maxRequests = l.cfg.MaxRequests
	}
	if window <= 0 {
		window = l.cfg.Window
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.cfg.StoreCap {
			l.evictOldestLocked()
		}
		e = &entry{}
		l.entries[key] = e
	}
	e.lastSeen = now

	if e.blocked {
		if now.Before(e.blockedUntil) {
			return Decision{
				Allowed:    false,
				Limit:      maxRequests,
				Remaining:  0,
				Reset:      e.blockedUntil,
				RetryAfter: e.blockedUntil.Sub(now),
			}, nil
		}
		e.blocked = false
		e.blockedUntil = time.Time{}
		e.timestamps = e.timestamps[:0]
	}

	cutoff := now.Add(-window)
	kept := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.timestamps = append(kept, now)

	if l.rng.Float64() < sweepChance {
		l.sweepLocked(now)
	}

	if len(e.timestamps) > maxRequests {
		e.blocked = true
		e.blockedUntil = now.Add(l.cfg.BlockDuration)
		l.logger.WithFields(logrus.Fields{
			"key":   key,
			"count": len(e.timestamps),
			"until": e.blockedUntil,
		}).Warn("Rate limit exceeded, key blocked")
		return Decision{
			Allowed:    false,
			Limit:      maxRequests,
			Remaining:  0,
			Reset:      e.blockedUntil,
			RetryAfter: l.cfg.BlockDuration,
		}, nil
	}

	return Decision{
		Allowed:   true,
		Limit:     maxRequests,
		Remaining: maxRequests - len(e.timestamps),
		Reset:     now.Add(window),
	}, nil
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartCleanup prunes idle entries on a ticker until ctx is done.
func (l *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.mu.Lock()
				l.sweepLocked(l.now())
				l.mu.Unlock()
			}
		}
	}()
}

// sweepLocked drops entries idle for longer than window plus block duration.
func (l *MemoryLimiter) sweepLocked(now time.Time) {
	idle := l.cfg.Window + l.cfg.BlockDuration
	for key, e := range l.entries {
		if e.blocked && now.Before(e.blockedUntil) {
			continue
		}
		if now.Sub(e.lastSeen) > idle {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryLimiter) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, e := range l.entries {
		if e.blocked && l.now().Before(e.blockedUntil) {
			continue
		}
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = e.lastSeen
		}
	}
	if oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}
