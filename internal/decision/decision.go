// Package decision applies the classification threshold and aggregates
// per-batch summary statistics.
package decision

import (
	"gonum.org/v1/gonum/stat"

	"github.com/opensource-telco/shrike/internal/domain"
)

// Threshold is the fixed decision boundary. It is a design constant,
// not per-call configuration, so summaries stay comparable across
// batches. Exactly 0.5 classifies as Legitimate.
const Threshold = 0.5

// Risk band boundaries for reporting.
const (
	highBand = 0.7
	lowBand  = 0.3
)

// Classify maps a fraud probability to the binary prediction and its
// display label.
func Classify(probability float64) (int, string) {
	if probability > Threshold {
		return 1, domain.ClassFraud
	}
	return 0, domain.ClassLegitimate
}

// Band returns the reporting-only risk band for a probability:
// high > 0.7, medium in [0.3, 0.7], low < 0.3. Bands are computed on
// demand and never stored.
func Band(probability float64) string {
	switch {
	case probability > highBand:
		return domain.BandHigh
	case probability < lowBand:
		return domain.BandLow
	default:
		return domain.BandMedium
	}
}

// Summarize aggregates a batch's predictions. The invariant
// PredictedFrauds + LegitCount == Total holds by construction, and
// AvgProb is the arithmetic mean of the probabilities (0 for an empty
// slice, though empty batches are rejected upstream).
func Summarize(predictions []domain.Prediction) domain.BatchSummary {
	summary := domain.BatchSummary{Total: len(predictions)}
	if len(predictions) == 0 {
		return summary
	}

	probs := make([]float64, len(predictions))
	for i, p := range predictions {
		probs[i] = p.FraudProbability
		if p.PredictedFraud == 1 {
			summary.PredictedFrauds++
		}
	}
	summary.LegitCount = summary.Total - summary.PredictedFrauds
	summary.AvgProb = stat.Mean(probs, nil)
	return summary
}
