package types

// Action is the enforcement decision for one request.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionChallenge Action = "challenge"
	ActionBlock     Action = "block"
)

// RiskLevel buckets a combined score for operators.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RuleMatch is emitted for every signature rule that matched a request field.
type RuleMatch struct {
	RuleID   string  `json:"rule_id"`
	Category string  `json:"category"`
	Severity string  `json:"severity"`
	Score    float64 `json:"score"`
}

// Factor names one contribution to a score, for explainability.
type Factor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
}

// ScoringResult is the decision artifact for one request. It is returned to
// the caller and logged externally; the core does not retain it.
type ScoringResult struct {
	PatternScore     float64     `json:"pattern_score"`
	MLScore          float64     `json:"ml_score"`
	CombinedScore    float64     `json:"combined_score"`
	Action           Action      `json:"action"`
	RiskLevel        RiskLevel   `json:"risk_level"`
	Reasoning        []string    `json:"reasoning"`
	TopFactors       []Factor    `json:"top_factors"`
	Matches          []RuleMatch `json:"matches"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
}
