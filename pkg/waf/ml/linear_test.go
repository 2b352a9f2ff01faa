package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/waf/features"
)

func TestCleanVectorScoresZero(t *testing.T) {
	m := NewLinearModel()

	pred := m.Predict(features.Vector{EntropyScore: 4.0})

	assert.Zero(t, pred.AnomalyScore)
	assert.Zero(t, pred.ThreatProbability)
	assert.InDelta(t, 0.3, pred.Confidence, 0.001)
	assert.Empty(t, pred.Reasoning)
}

func TestInjectionVectorScoresHigh(t *testing.T) {
	m := NewLinearModel()

	pred := m.Predict(features.Vector{
		SQLKeywordCount:    4,
		SpecialCharDensity: 0.3,
		URLEncodingDensity: 0.2,
		EntropyScore:       5.5,
		IPReputation:       40,
	})

	// 48 + 13.5 + 7 + 8 + 14 clipped at 100
	assert.InDelta(t, 90.5, pred.AnomalyScore, 0.1)
	assert.InDelta(t, 0.905, pred.ThreatProbability, 0.001)
	assert.InDelta(t, 0.8, pred.Confidence, 0.001)
	assert.Len(t, pred.TopFactors, 3)
	assert.Equal(t, "sql_keywords", pred.TopFactors[0].Name)
}

func TestPredictionClippedAt100(t *testing.T) {
	m := NewLinearModel()

	pred := m.Predict(features.Vector{
		SQLKeywordCount:   10,
		ShellCommandCount: 10,
	})

	assert.Equal(t, 100.0, pred.AnomalyScore)
	assert.Equal(t, 1.0, pred.ThreatProbability)
}

func TestCombinerRenormalizesWeights(t *testing.T) {
	c := NewCombiner(3, 1)

	// weights become 0.75/0.25
	score := c.Combine(80, Prediction{AnomalyScore: 40})
	assert.InDelta(t, 70.0, score, 0.001)

	c.SetWeights(0, 0)
	score = c.Combine(80, Prediction{AnomalyScore: 40})
	assert.InDelta(t, 60.0, score, 0.001)
}

func TestCombineClipped(t *testing.T) {
	c := NewCombiner(0.6, 0.4)

	assert.Equal(t, 100.0, c.Combine(100, Prediction{AnomalyScore: 100}))
	assert.Equal(t, 0.0, c.Combine(0, Prediction{AnomalyScore: 0}))
}
