package behavior

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vigilguard/vigil/pkg/types"
)

const (
	// lockThreshold failed attempts inside failureWindow lock the identity
	lockThreshold = 5
	failureWindow = 24 * time.Hour
	lockDuration  = 15 * time.Minute

	riskDenyThreshold     = 70
	stuffingThreshold     = 60
	rapidAttemptWindow    = 10 * time.Minute
	velocityWindow        = time.Hour
	suspiciousIPFailures  = 3
	suspiciousIPUserAgent = 3
)

// TrackResult is the outcome of processing one login attempt.
type TrackResult struct {
	Allowed bool     `json:"allowed"`
	Reason  string   `json:"reason,omitempty"`
	Profile *Profile `json:"profile"`
}

// StuffingResult reports credential stuffing indicators for an identity.
type StuffingResult struct {
	IsStuffing bool     `json:"is_stuffing"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
}

// Analyzer maintains per-identity login behavior and applies the lockout
// state machine. Locks expire lazily: the expiry is checked on the next
// attempt, no background timer flips the state.
type Analyzer struct {
	logger *logrus.Logger
	store  Store

	mu sync.Mutex
}

func NewAnalyzer(logger *logrus.Logger, store Store) *Analyzer {
	if store == nil {
		store = NewStore()
	}
	return &Analyzer{logger: logger, store: store}
}

// Store exposes the underlying profile store for sweeping.
func (a *Analyzer) Store() Store { return a.store }

// TrackLoginAttempt processes one attempt and returns whether it is allowed.
// Attempts against a locked identity are rejected until the lock expires,
// regardless of credential validity.
func (a *Analyzer) TrackLoginAttempt(attempt Attempt) TrackResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := attempt.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	attempt.Timestamp = now

	profile := a.store.GetOrCreate(attempt.Identity)

	if profile.IsLocked {
		if now.Before(profile.LockExpiresAt) {
			// still record the attempt so stuffing detection keeps tracking
			// activity against locked identities
			attempt.Success = false
			attempt.Denied = true
			a.recordAttempt(profile, attempt, now)
			profile.FailedAttempts++
			profile.ipBehavior(attempt.IP).Failures++
			a.refreshScores(profile, now)
			remaining := profile.LockExpiresAt.Sub(now).Round(time.Second)
			return TrackResult{
				Allowed: false,
				Reason:  fmt.Sprintf("account locked, retry in %s", remaining),
				Profile: profile,
			}
		}
		profile.IsLocked = false
		profile.LockExpiresAt = time.Time{}
	}

	result := TrackResult{Allowed: true, Profile: profile}

	if attempt.Success {
		a.recordAttempt(profile, attempt, now)
		profile.SuccessfulAttempts++
		profile.FailedAttempts = 0
	} else {
		risk := a.failureRisk(profile, profile.ipBehavior(attempt.IP))
		if risk > riskDenyThreshold {
			// too risky to count against the lockout budget, reject outright
			attempt.Denied = true
			a.recordAttempt(profile, attempt, now)
			result.Allowed = false
			result.Reason = fmt.Sprintf("attempt rejected, failure risk %.0f", risk)
			a.refreshScores(profile, now)
			a.logger.WithFields(logrus.Fields{
				"identity": attempt.Identity,
				"ip":       attempt.IP,
				"risk":     risk,
			}).Warn("High-risk login attempt rejected")
			return result
		}

		a.recordAttempt(profile, attempt, now)
		ipb := profile.IPs[attempt.IP]
		profile.FailedAttempts++
		ipb.Failures++
		a.markSuspicious(ipb)

		if profile.failuresSince(now, failureWindow) >= lockThreshold {
			profile.IsLocked = true
			profile.LockExpiresAt = now.Add(lockDuration)
			a.logger.WithFields(logrus.Fields{
				"identity":   attempt.Identity,
				"ip":         attempt.IP,
				"expires_at": profile.LockExpiresAt,
			}).Warn("Identity locked after repeated failures")
		}
	}

	a.refreshScores(profile, now)
	return result
}

// recordAttempt folds one attempt into the profile counters and window.
func (a *Analyzer) recordAttempt(profile *Profile, attempt Attempt, now time.Time) {
	profile.pruneAttempts(now, failureWindow)
	profile.TotalAttempts++
	profile.LastAttempt = now
	profile.attempts = append(profile.attempts, attempt)

	ipb := profile.ipBehavior(attempt.IP)
	ipb.Attempts++
	ipb.LastSeen = now
	if attempt.Country != "" {
		ipb.Countries[attempt.Country] = struct{}{}
	}
	if attempt.UserAgent != "" {
		ipb.UserAgents[attempt.UserAgent] = struct{}{}
	}
}

// failureRisk scores a single failed attempt before it is recorded.
func (a *Analyzer) failureRisk(profile *Profile, ipb *IpBehavior) float64 {
	risk := 10.0
	if profile.FailedAttempts > 3 {
		risk += 20
	}
	if len(ipb.UserAgents) > 5 {
		risk += 25
	}
	if profile.uniqueIPs() > 10 {
		risk += 20
	}
	return math.Min(risk, 100)
}

func (a *Analyzer) markSuspicious(ipb *IpBehavior) {
	if ipb.Failures == suspiciousIPFailures+1 {
		ipb.SuspiciousPatterns = append(ipb.SuspiciousPatterns, "repeated_failures")
	}
	if len(ipb.UserAgents) == suspiciousIPUserAgent+1 {
		ipb.SuspiciousPatterns = append(ipb.SuspiciousPatterns, "rotating_user_agents")
	}
}

// DetectCredentialStuffing scores the stuffing likelihood for an identity.
func (a *Analyzer) DetectCredentialStuffing(identity string) StuffingResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	profile, ok := a.store.Get(identity)
	if !ok {
		return StuffingResult{}
	}
	return a.stuffingLocked(profile, time.Now())
}

func (a *Analyzer) stuffingLocked(profile *Profile, now time.Time) StuffingResult {
	var confidence float64
	var indicators []string

	totalFailures := 0
	for _, b := range profile.IPs {
		totalFailures += b.Failures
	}

	if profile.uniqueIPs() > 5 {
		confidence += 20
		indicators = append(indicators, "distributed_sources")
	}
	if totalFailures > 10 {
		confidence += 25
		indicators = append(indicators, "high_failure_count")
	}
	if profile.attemptsSince(now, rapidAttemptWindow) > 15 {
		confidence += 30
		indicators = append(indicators, "rapid_attempts")
	}
	if profile.uniqueUserAgents() > 8 {
		confidence += 15
		indicators = append(indicators, "user_agent_churn")
	}
	if profile.suspiciousIPCount() > 2 {
		confidence += 10
		indicators = append(indicators, "suspicious_sources")
	}
	confidence = math.Min(confidence, 100)

	return StuffingResult{
		IsStuffing: confidence >= stuffingThreshold,
		Confidence: confidence,
		Indicators: indicators,
	}
}

// CalculateAnomalyScore computes the behavioral anomaly score for an
// identity, zero when the identity is unknown.
func (a *Analyzer) CalculateAnomalyScore(identity string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	profile, ok := a.store.Get(identity)
	if !ok {
		return 0
	}
	return a.anomalyLocked(profile, time.Now())
}

func (a *Analyzer) anomalyLocked(profile *Profile, now time.Time) float64 {
	var score float64

	if profile.TotalAttempts > 0 {
		failureRate := float64(profile.FailedAttempts) / float64(profile.TotalAttempts)
		score += failureRate * 40
	}

	if countries := profile.uniqueCountries(); countries > 2 {
		score += math.Min(30, float64(countries)*10)
	}

	switch agents := profile.uniqueUserAgents(); {
	case agents > 10:
		score += 25
	case agents > 5:
		score += 15
	}

	switch velocity := profile.attemptsSince(now, velocityWindow); {
	case velocity > 20:
		score += 30
	case velocity > 10:
		score += 15
	}

	return math.Min(score, 100)
}

func (a *Analyzer) refreshScores(profile *Profile, now time.Time) {
	profile.AnomalyScore = a.anomalyLocked(profile, now)
	stuffing := a.stuffingLocked(profile, now)
	profile.BotScore = stuffing.Confidence
	profile.RiskLevel = riskLevel(math.Max(profile.AnomalyScore, stuffing.Confidence))
}

func riskLevel(score float64) types.RiskLevel {
	switch {
	case score >= 75:
		return types.RiskCritical
	case score >= 60:
		return types.RiskHigh
	case score >= 40:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// FusionSignals exposes the identity's behavioral inputs for score fusion,
// all in [0,100]. Unknown identities contribute nothing.
func (a *Analyzer) FusionSignals(identity string) (behavioral, geo, velocity, stuffing float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	profile, ok := a.store.Get(identity)
	if !ok {
		return 0, 0, 0, 0
	}
	now := time.Now()

	behavioral = a.anomalyLocked(profile, now)
	stuffing = a.stuffingLocked(profile, now).Confidence

	if countries := profile.uniqueCountries(); countries > 2 {
		geo = math.Min(100, float64(countries)*20)
	}
	velocity = math.Min(100, float64(profile.attemptsSince(now, velocityWindow))*4)
	return behavioral, geo, velocity, stuffing
}

// Scores returns the current anomaly and stuffing scores for fusion input.
func (a *Analyzer) Scores(identity string) (anomaly, stuffing float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	profile, ok := a.store.Get(identity)
	if !ok {
		return 0, 0
	}
	now := time.Now()
	return a.anomalyLocked(profile, now), a.stuffingLocked(profile, now).Confidence
}
