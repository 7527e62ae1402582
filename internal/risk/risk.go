// Package risk implements the deterministic fraud scoring engine.
//
// A FeatureRecord is evaluated against a fixed table of weighted rules. Each
// rule that fires adds its weight to a running score and, for most rules, a
// human-readable factor. The score is clamped to [0,10] and mapped onto a
// bucketed probability in [0.02,0.98]. The engine holds no state and is safe
// for concurrent use.
package risk

// Prediction is the engine's verdict on a transaction.
type Prediction string

const (
	PredictionFraudulent Prediction = "Fraudulent"
	PredictionLegitimate Prediction = "Legitimate"
)

// Score and probability bounds.
const (
	MinScore       = 0.0
	MaxScore       = 10.0
	MinProbability = 0.02
	MaxProbability = 0.98

	// FraudScoreThreshold and FraudProbabilityThreshold are inclusive.
	FraudScoreThreshold       = 5.0
	FraudProbabilityThreshold = 0.7
)

// LowRiskFactor is reported when no rule contributed a factor.
const LowRiskFactor = "Low risk indicators"

// Classification is the result of scoring a single FeatureRecord.
type Classification struct {
	Prediction  Prediction `json:"prediction"`
	Probability float64    `json:"probability"`
	FraudScore  float64    `json:"fraud_score"`
	RiskFactors []string   `json:"risk_factors"`
}

// IsFraudulent reports whether the classification flags fraud.
func (c Classification) IsFraudulent() bool {
	return c.Prediction == PredictionFraudulent
}
