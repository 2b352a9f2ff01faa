package ml

import (
	"github.com/vigilguard/vigil/pkg/types"
	"github.com/vigilguard/vigil/pkg/waf/features"
)

// Prediction is the model output for one feature vector.
type Prediction struct {
	ThreatProbability float64        `json:"threat_probability"` // [0,1]
	AnomalyScore      float64        `json:"anomaly_score"`      // [0,100]
	Confidence        float64        `json:"confidence"`         // [0,1]
	Reasoning         []string       `json:"reasoning,omitempty"`
	TopFactors        []types.Factor `json:"top_factors,omitempty"`
}

// Predictor scores feature vectors. The default is the built-in linear
// model; a trained model can be dropped in without touching callers.
type Predictor interface {
	Predict(v features.Vector) Prediction
}
