package types

import "time"

// EnforcementMode selects whether decisions are enforced or only logged.
type EnforcementMode string

const (
	ModeMonitor EnforcementMode = "monitor"
	ModeBlock   EnforcementMode = "block"
)

// Policy is the per-tenant decision policy. It is supplied by an external
// store and read-only to the pipeline.
type Policy struct {
	BlockThreshold     float64         `json:"block_threshold" mapstructure:"block_threshold"`
	ChallengeThreshold float64         `json:"challenge_threshold" mapstructure:"challenge_threshold"`
	MonitorThreshold   float64         `json:"monitor_threshold" mapstructure:"monitor_threshold"`
	RateLimit          int             `json:"rate_limit" mapstructure:"rate_limit"`
	RateLimitWindow    time.Duration   `json:"rate_limit_window" mapstructure:"rate_limit_window"`
	EnforcementMode    EnforcementMode `json:"enforcement_mode" mapstructure:"enforcement_mode"`
	SecurityEngine     string          `json:"security_engine" mapstructure:"security_engine"`
}

// PolicyProvider resolves the active policy for a tenant.
type PolicyProvider interface {
	PolicyFor(tenantID string) Policy
}
