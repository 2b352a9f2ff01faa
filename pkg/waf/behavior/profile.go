package behavior

import (
	"time"

	"github.com/vigilguard/vigil/pkg/types"
)

// Attempt is one observed login attempt for an identity.
type Attempt struct {
	Identity  string    `json:"identity"`
	TenantID  string    `json:"tenant_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Country   string    `json:"country"` // opaque geo input, may be empty
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`

	// Denied marks attempts rejected before evaluation. They stay out of
	// the lockout budget but still count toward velocity windows.
	Denied bool `json:"denied,omitempty"`
}

// IpBehavior aggregates what one source IP has done against an identity.
type IpBehavior struct {
	Attempts           int                 `json:"attempts"`
	Failures           int                 `json:"failures"`
	LastSeen           time.Time           `json:"last_seen"`
	Countries          map[string]struct{} `json:"-"`
	UserAgents         map[string]struct{} `json:"-"`
	SuspiciousPatterns []string            `json:"suspicious_patterns"`
}

// Profile is the per-identity behavioral state. Created lazily on the first
// attempt and mutated on every attempt. Invariant: IsLocked implies
// LockExpiresAt is set; a successful attempt resets FailedAttempts.
type Profile struct {
	Identity           string                 `json:"identity"`
	TotalAttempts      int                    `json:"total_attempts"`
	FailedAttempts     int                    `json:"failed_attempts"`
	SuccessfulAttempts int                    `json:"successful_attempts"`
	LastAttempt        time.Time              `json:"last_attempt"`
	IsLocked           bool                   `json:"is_locked"`
	LockExpiresAt      time.Time              `json:"lock_expires_at"`
	BotScore           float64                `json:"bot_score"`
	AnomalyScore       float64                `json:"anomaly_score"`
	RiskLevel          types.RiskLevel        `json:"risk_level"`
	IPs                map[string]*IpBehavior `json:"ips"`

	// recent attempts, pruned to the failure window, for windowed counts
	attempts []Attempt
}

func newProfile(identity string) *Profile {
	return &Profile{
		Identity: identity,
		IPs:      make(map[string]*IpBehavior),
	}
}

func (p *Profile) ipBehavior(ip string) *IpBehavior {
	b, ok := p.IPs[ip]
	if !ok {
		b = &IpBehavior{
			Countries:  make(map[string]struct{}),
			UserAgents: make(map[string]struct{}),
		}
		p.IPs[ip] = b
	}
	return b
}

func (p *Profile) pruneAttempts(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := p.attempts[:0]
	for _, a := range p.attempts {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	p.attempts = kept
}

func (p *Profile) attemptsSince(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, a := range p.attempts {
		if a.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

func (p *Profile) failuresSince(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, a := range p.attempts {
		if !a.Success && !a.Denied && a.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

func (p *Profile) uniqueIPs() int {
	return len(p.IPs)
}

func (p *Profile) uniqueUserAgents() int {
	agents := make(map[string]struct{})
	for _, b := range p.IPs {
		for ua := range b.UserAgents {
			agents[ua] = struct{}{}
		}
	}
	return len(agents)
}

func (p *Profile) uniqueCountries() int {
	countries := make(map[string]struct{})
	for _, b := range p.IPs {
		for c := range b.Countries {
			countries[c] = struct{}{}
		}
	}
	return len(countries)
}

func (p *Profile) suspiciousIPCount() int {
	count := 0
	for _, b := range p.IPs {
		if len(b.SuspiciousPatterns) > 0 {
			count++
		}
	}
	return count
}
