package ml

import (
	"fmt"
	"math"
	"sort"

	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/features"
)

// LinearModel is the default heuristic scorer: fixed per-feature weights,
// summed and clipped to [0,100]. Keyword counts are integer occurrence
// counts, densities sit in [0,1], entropy in [0,8], reputation in [0,100].
type LinearModel struct {
	SQLKeywordWeight    float64
	JSKeywordWeight     float64
	ShellCommandWeight  float64
	PathTraversalWeight float64
	SpecialCharWeight   float64
	URLEncodingWeight   float64
	EntropyWeight       float64
	ReputationWeight    float64

	// EntropyBaseline is subtracted before weighting; ordinary text sits
	// around 4 bits per byte.
	EntropyBaseline float64
}

func NewLinearModel() *LinearModel {
	return &LinearModel{
		SQLKeywordWeight:    12,
		JSKeywordWeight:     10,
		ShellCommandWeight:  15,
		PathTraversalWeight: 18,
		SpecialCharWeight:   45,
		URLEncodingWeight:   35,
		EntropyWeight:       8,
		ReputationWeight:    0.35,
		EntropyBaseline:     4.5,
	}
}

func (m *LinearModel) Predict(v features.Vector) Prediction {
	factors := []types.Factor{
		{Name: "sql_keywords", Contribution: float64(v.SQLKeywordCount) * m.SQLKeywordWeight},
		{Name: "js_keywords", Contribution: float64(v.JSKeywordCount) * m.JSKeywordWeight},
		{Name: "shell_commands", Contribution: float64(v.ShellCommandCount) * m.ShellCommandWeight},
		{Name: "path_traversal", Contribution: float64(v.PathTraversalCount) * m.PathTraversalWeight},
		{Name: "special_char_density", Contribution: v.SpecialCharDensity * m.SpecialCharWeight},
		{Name: "url_encoding_density", Contribution: v.URLEncodingDensity * m.URLEncodingWeight},
		{Name: "entropy", Contribution: math.Max(0, v.EntropyScore-m.EntropyBaseline) * m.EntropyWeight},
		{Name: "ip_reputation", Contribution: v.IPReputation * m.ReputationWeight},
	}

	var sum float64
	nonzero := 0
	var reasoning []string
	for _, f := range factors {
		if f.Contribution > 0 {
			nonzero++
			reasoning = append(reasoning, fmt.Sprintf("%s contributed %.1f", f.Name, f.Contribution))
		}
		sum += f.Contribution
	}
	score := clip(sum, 0, 100)

	sort.Slice(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})
	top := factors
	if len(top) > 3 {
		top = top[:3]
	}

	return Prediction{
		ThreatProbability: score / 100,
		AnomalyScore:      score,
		Confidence:        math.Min(1, 0.3+0.1*float64(nonzero)),
		Reasoning:         reasoning,
		TopFactors:        top,
	}
}

// Combiner folds the signature score and the model score into one combined
// score. Weights are renormalized to sum to one every time they change.
type Combiner struct {
	patternWeight float64
	mlWeight      float64
}

func NewCombiner(patternWeight, mlWeight float64) *Combiner {
	c := &Combiner{}
	c.SetWeights(patternWeight, mlWeight)
	return c
}

// SetWeights replaces both weights, renormalizing so they sum to one.
// Non-positive totals fall back to an even split.
func (c *Combiner) SetWeights(pattern, ml float64) {
	total := pattern + ml
	if total <= 0 {
		c.patternWeight, c.mlWeight = 0.5, 0.5
		return
	}
	c.patternWeight = pattern / total
	c.mlWeight = ml / total
}

// Combine maps a pattern score in [0,100] and a prediction to [0,100].
func (c *Combiner) Combine(patternScore float64, pred Prediction) float64 {
	blended := patternScore/100*c.patternWeight + pred.AnomalyScore/100*c.mlWeight
	return clip(blended, 0, 1) * 100
}

func clip(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
