package domain

import (
	"time"
)

// Classification labels attached to each prediction.
const (
	ClassFraud      = "Fraud"
	ClassLegitimate = "Legitimate"
)

// Risk bands derived from fraud_probability for reporting. Bands are
// computed on demand and never stored.
const (
	BandHigh   = "high"   // probability > 0.7
	BandMedium = "medium" // probability in [0.3, 0.7]
	BandLow    = "low"    // probability < 0.3
)

// Prediction is the scored output for a single subscriber record.
type Prediction struct {
	SubscriberID     string  `json:"subscriber_id"`
	FraudProbability float64 `json:"fraud_probability"`
	PredictedFraud   int     `json:"predicted_fraud"`
	Classification   string  `json:"classification"`

	// Fields carries the original record's cells (required and extra
	// columns alike) for display alongside the score.
	Fields map[string]string `json:"fields"`
}

// BatchSummary aggregates one batch's predictions.
// Invariant: PredictedFrauds + LegitCount == Total and AvgProb is the
// arithmetic mean of the batch's fraud probabilities.
type BatchSummary struct {
	Total           int     `json:"total"`
	PredictedFrauds int     `json:"predicted_frauds"`
	LegitCount      int     `json:"legit_count"`
	AvgProb         float64 `json:"avg_prob"`
}

// Result is a persisted batch outcome. Created once per upload, never
// mutated, retrievable until explicitly purged.
type Result struct {
	ID          string       `json:"id"`
	Summary     BatchSummary `json:"summary"`
	Predictions []Prediction `json:"predictions"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// ResultSummary is a listing entry for the saved-uploads view: the
// identifier and summary without the per-record payload.
type ResultSummary struct {
	ID        string       `json:"id"`
	Summary   BatchSummary `json:"summary"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ReviewRule is a reporting-only CEL expression evaluated over a stored
// result's predictions to flag records for manual review. Rules never
// influence scoring or stored results.
type ReviewRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Flag marks a single prediction matched by a review rule.
type Flag struct {
	RuleID           string  `json:"ruleId"`
	RuleName         string  `json:"ruleName"`
	SubscriberID     string  `json:"subscriber_id"`
	FraudProbability float64 `json:"fraud_probability"`
}
