package policy

import (
	"sync"
	"time"

	"github.com/vigilguard/vigil/pkg/config"
	"github.com/vigilguard/vigil/pkg/types"
)

// Provider resolves tenant policies from the static configuration, with
// runtime per-tenant overrides layered on top. Overrides are applied whole:
// a tenant either uses the defaults or its own complete policy.
type Provider struct {
	defaults types.Policy

	mu        sync.RWMutex
	overrides map[string]types.Policy
}

func NewProvider(cfg config.PolicyConfig, rl config.RateLimitConfig) *Provider {
	mode := types.ModeBlock
	if cfg.EnforcementMode == string(types.ModeMonitor) {
		mode = types.ModeMonitor
	}
	return &Provider{
		defaults: types.Policy{
			BlockThreshold:     cfg.BlockThreshold,
			ChallengeThreshold: cfg.ChallengeThreshold,
			MonitorThreshold:   cfg.MonitorThreshold,
			RateLimit:          rl.MaxRequests,
			RateLimitWindow:    rl.Window,
			EnforcementMode:    mode,
			SecurityEngine:     cfg.SecurityEngine,
		},
		overrides: make(map[string]types.Policy),
	}
}

func (p *Provider) PolicyFor(tenantID string) types.Policy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if policy, ok := p.overrides[tenantID]; ok {
		return policy
	}
	return p.defaults
}

// SetOverride installs a tenant-specific policy. Zero thresholds inherit
// the defaults, zero windows inherit the default window.
func (p *Provider) SetOverride(tenantID string, policy types.Policy) {
	if policy.BlockThreshold <= 0 {
		policy.BlockThreshold = p.defaults.BlockThreshold
	}
	if policy.ChallengeThreshold <= 0 {
		policy.ChallengeThreshold = p.defaults.ChallengeThreshold
	}
	if policy.MonitorThreshold <= 0 {
		policy.MonitorThreshold = p.defaults.MonitorThreshold
	}
	if policy.RateLimit <= 0 {
		policy.RateLimit = p.defaults.RateLimit
	}
	if policy.RateLimitWindow <= 0 {
		policy.RateLimitWindow = p.defaults.RateLimitWindow
	}
	if policy.EnforcementMode == "" {
		policy.EnforcementMode = p.defaults.EnforcementMode
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[tenantID] = policy
}

// RemoveOverride reverts a tenant to the default policy.
func (p *Provider) RemoveOverride(tenantID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overrides, tenantID)
}

// Window is a helper for the tenant rate limit middleware.
func (p *Provider) Window(tenantID string) (int, time.Duration) {
	policy := p.PolicyFor(tenantID)
	return policy.RateLimit, policy.RateLimitWindow
}
