package fusion

import (
	"math"

	"github.com/vigilguard/vigil/pkg/types"
)

// Signals are the fused inputs, each already normalized to [0,100].
type Signals struct {
	Pattern    float64 `json:"pattern"`
	Anomaly    float64 `json:"anomaly"`
	Reputation float64 `json:"reputation"`
	Bot        float64 `json:"bot"`
	Behavioral float64 `json:"behavioral"`
	Geo        float64 `json:"geo"`
	Velocity   float64 `json:"velocity"`
	Stuffing   float64 `json:"stuffing"`
}

// Assessment is the fused verdict.
type Assessment struct {
	Score          float64         `json:"score"`
	RiskLevel      types.RiskLevel `json:"risk_level"`
	Recommendation types.Action    `json:"recommendation"`
	Confidence     float64         `json:"confidence"`
	Amplified      bool            `json:"amplified"`
	TopFactors     []types.Factor  `json:"top_factors"`
}

// Signal weights. They sum to one; pattern and bot carry the most because
// they are the least noisy inputs.
const (
	wPattern    = 0.30
	wAnomaly    = 0.15
	wReputation = 0.10
	wBot        = 0.20
	wBehavioral = 0.15
	wGeo        = 0.05
	wVelocity   = 0.03
	wStuffing   = 0.02
)

// Score fuses the signals into a single assessment. Correlated attack
// signatures amplify the base score multiplicatively, both amplifiers can
// stack, and the result is capped at 100.
func Score(s Signals) Assessment {
	base := s.Pattern*wPattern +
		s.Anomaly*wAnomaly +
		s.Reputation*wReputation +
		s.Bot*wBot +
		s.Behavioral*wBehavioral +
		s.Geo*wGeo +
		s.Velocity*wVelocity +
		s.Stuffing*wStuffing

	score := base
	amplified := false
	if s.Bot > 60 && s.Stuffing > 50 {
		score *= 1.3
		amplified = true
	}
	if s.Pattern > 50 && s.Anomaly > 40 {
		score *= 1.15
		amplified = true
	}
	score = math.Min(score, 100)

	risk := riskLevel(score, s)

	return Assessment{
		Score:          score,
		RiskLevel:      risk,
		Recommendation: recommend(risk, s),
		Confidence:     confidence(s),
		Amplified:      amplified,
		TopFactors:     topFactors(s),
	}
}

func riskLevel(score float64, s Signals) types.RiskLevel {
	switch {
	case score >= 80:
		return types.RiskCritical
	case score >= 65:
		if s.Bot > 80 && s.Stuffing > 70 {
			return types.RiskCritical
		}
		return types.RiskHigh
	case score >= 45:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

func recommend(risk types.RiskLevel, s Signals) types.Action {
	switch risk {
	case types.RiskCritical:
		return types.ActionBlock
	case types.RiskHigh:
		if (s.Bot > 75 && s.Stuffing > 60) || s.Stuffing > 85 {
			return types.ActionBlock
		}
		return types.ActionChallenge
	case types.RiskMedium:
		return types.ActionChallenge
	default:
		return types.ActionAllow
	}
}

// confidence starts at 50 and grows with the number of strong independent
// signals: pattern>50, anomaly>50, bot>60, behavioral>50, stuffing>60.
func confidence(s Signals) float64 {
	c := 50.0
	checks := []bool{
		s.Pattern > 50,
		s.Anomaly > 50,
		s.Bot > 60,
		s.Behavioral > 50,
		s.Stuffing > 60,
	}
	for _, hit := range checks {
		if hit {
			c += 10
		}
	}
	if s.Pattern > 70 && s.Anomaly > 60 {
		c += 10
	}
	return math.Min(c, 100)
}

func topFactors(s Signals) []types.Factor {
	factors := []types.Factor{
		{Name: "pattern", Contribution: s.Pattern * wPattern},
		{Name: "anomaly", Contribution: s.Anomaly * wAnomaly},
		{Name: "reputation", Contribution: s.Reputation * wReputation},
		{Name: "bot", Contribution: s.Bot * wBot},
		{Name: "behavioral", Contribution: s.Behavioral * wBehavioral},
		{Name: "geo", Contribution: s.Geo * wGeo},
		{Name: "velocity", Contribution: s.Velocity * wVelocity},
		{Name: "stuffing", Contribution: s.Stuffing * wStuffing},
	}

	// selection by straight insertion, three winners
	top := make([]types.Factor, 0, 3)
	for _, f := range factors {
		if f.Contribution <= 0 {
			continue
		}
		inserted := false
		for i, existing := range top {
			if f.Contribution > existing.Contribution {
				top = append(top[:i], append([]types.Factor{f}, top[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted && len(top) < 3 {
			top = append(top, f)
		}
		if len(top) > 3 {
			top = top[:3]
		}
	}
	return top
}
