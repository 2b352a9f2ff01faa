package behavior

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testAnalyzer() *Analyzer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAnalyzer(logger, NewStore())
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	a := testAnalyzer()
	base := time.Now()

	for i := 0; i < 5; i++ {
		res := a.TrackLoginAttempt(Attempt{
			Identity:  "alice",
			IP:        "203.0.113.10",
			UserAgent: "Mozilla/5.0",
			Success:   false,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		assert.True(t, res.Allowed, "attempt %d should be processed", i)
	}

	locked := a.TrackLoginAttempt(Attempt{
		Identity:  "alice",
		IP:        "203.0.113.10",
		UserAgent: "Mozilla/5.0",
		Success:   true,
		Timestamp: base.Add(10 * time.Second),
	})
	assert.False(t, locked.Allowed)
	assert.Contains(t, locked.Reason, "locked")
	assert.True(t, locked.Profile.IsLocked)

	// lock expires lazily on the next attempt after 15 minutes
	after := a.TrackLoginAttempt(Attempt{
		Identity:  "alice",
		IP:        "203.0.113.10",
		UserAgent: "Mozilla/5.0",
		Success:   true,
		Timestamp: base.Add(16 * time.Minute),
	})
	assert.True(t, after.Allowed)
	assert.False(t, after.Profile.IsLocked)
	assert.Equal(t, 0, after.Profile.FailedAttempts)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	a := testAnalyzer()

	for i := 0; i < 3; i++ {
		a.TrackLoginAttempt(Attempt{Identity: "bob", IP: "198.51.100.1", Success: false})
	}
	res := a.TrackLoginAttempt(Attempt{Identity: "bob", IP: "198.51.100.1", Success: true})

	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Profile.FailedAttempts)
	assert.Equal(t, 1, res.Profile.SuccessfulAttempts)
}

func TestHighRiskFailureRejectedWithoutLockoutProgress(t *testing.T) {
	a := testAnalyzer()
	base := time.Now()

	// seed a wide footprint with successful logins: 11 source IPs and 6
	// user agents on one of them
	for i := 0; i < 11; i++ {
		a.TrackLoginAttempt(Attempt{
			Identity:  "carol",
			IP:        fmt.Sprintf("203.0.113.%d", i+1),
			UserAgent: "Mozilla/5.0",
			Success:   true,
			Timestamp: base,
		})
	}
	for i := 0; i < 6; i++ {
		a.TrackLoginAttempt(Attempt{
			Identity:  "carol",
			IP:        "203.0.113.1",
			UserAgent: fmt.Sprintf("agent-%d", i),
			Success:   true,
			Timestamp: base,
		})
	}

	for i := 0; i < 4; i++ {
		res := a.TrackLoginAttempt(Attempt{
			Identity:  "carol",
			IP:        "203.0.113.1",
			UserAgent: "agent-0",
			Success:   false,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		assert.True(t, res.Allowed)
	}

	// failure counter is now above 3, every risk factor fires
	res := a.TrackLoginAttempt(Attempt{
		Identity:  "carol",
		IP:        "203.0.113.1",
		UserAgent: "agent-0",
		Success:   false,
		Timestamp: base.Add(5 * time.Second),
	})
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "failure risk")
	assert.False(t, res.Profile.IsLocked)
	assert.Equal(t, 4, res.Profile.FailedAttempts)
}

func TestCredentialStuffingDetection(t *testing.T) {
	a := testAnalyzer()
	base := time.Now().Add(-5 * time.Minute)

	// 12 failures spread over 6 source IPs and 9 user agents inside a
	// ten minute window
	for i := 0; i < 12; i++ {
		a.TrackLoginAttempt(Attempt{
			Identity:  "dave",
			IP:        fmt.Sprintf("198.51.100.%d", i%6),
			UserAgent: fmt.Sprintf("bot-agent-%d", i%9),
			Success:   false,
			Timestamp: base.Add(time.Duration(i) * 20 * time.Second),
		})
	}

	res := a.DetectCredentialStuffing("dave")
	assert.True(t, res.IsStuffing)
	assert.GreaterOrEqual(t, res.Confidence, 60.0)
	assert.Contains(t, res.Indicators, "distributed_sources")
	assert.Contains(t, res.Indicators, "high_failure_count")
	assert.Contains(t, res.Indicators, "user_agent_churn")
}

func TestStuffingUnknownIdentity(t *testing.T) {
	a := testAnalyzer()

	res := a.DetectCredentialStuffing("nobody")
	assert.False(t, res.IsStuffing)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, a.CalculateAnomalyScore("nobody"))
}

func TestAnomalyScoreComposition(t *testing.T) {
	a := testAnalyzer()
	base := time.Now().Add(-30 * time.Minute)

	countries := []string{"AA", "BB", "CC", "DD"}
	for i := 0; i < 8; i++ {
		a.TrackLoginAttempt(Attempt{
			Identity:  "erin",
			IP:        "192.0.2.7",
			UserAgent: fmt.Sprintf("client-%d", i%6),
			Country:   countries[i%4],
			Success:   true,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < 4; i++ {
		a.TrackLoginAttempt(Attempt{
			Identity:  "erin",
			IP:        "192.0.2.7",
			UserAgent: "client-0",
			Country:   "AA",
			Success:   false,
			Timestamp: base.Add(time.Duration(10+i) * time.Minute),
		})
	}

	// failure rate 4/12 contributes 13.3, four countries cap the geo
	// bonus at 30, six agents add 15, twelve attempts in the last hour
	// add 15
	score := a.CalculateAnomalyScore("erin")
	assert.InDelta(t, 73.3, score, 0.2)
}

func TestStoreSweepKeepsLockedProfiles(t *testing.T) {
	store := NewStore()

	stale := store.GetOrCreate("stale")
	stale.LastAttempt = time.Now().Add(-2 * time.Hour)

	locked := store.GetOrCreate("locked")
	locked.LastAttempt = time.Now().Add(-2 * time.Hour)
	locked.IsLocked = true
	locked.LockExpiresAt = time.Now().Add(10 * time.Minute)

	removed := store.Sweep(time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := store.Get("stale")
	assert.False(t, ok)
	_, ok = store.Get("locked")
	assert.True(t, ok)
}
