package decision

import (
	"math"
	"testing"

	"github.com/opensource-telco/shrike/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		probability float64
		wantFraud   int
		wantClass   string
	}{
		{"WellBelowThreshold", 0.1, 0, domain.ClassLegitimate},
		{"JustBelowThreshold", 0.4999, 0, domain.ClassLegitimate},
		{"ExactlyThreshold", 0.5, 0, domain.ClassLegitimate},
		{"JustAboveThreshold", 0.5001, 1, domain.ClassFraud},
		{"WellAboveThreshold", 0.95, 1, domain.ClassFraud},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fraud, class := Classify(tc.probability)
			if fraud != tc.wantFraud {
				t.Errorf("Classify(%v) fraud = %d, want %d", tc.probability, fraud, tc.wantFraud)
			}
			if class != tc.wantClass {
				t.Errorf("Classify(%v) class = %q, want %q", tc.probability, class, tc.wantClass)
			}
		})
	}
}

func TestBand(t *testing.T) {
	cases := []struct {
		name        string
		probability float64
		want        string
	}{
		{"Low", 0.1, domain.BandLow},
		{"LowerBoundaryIsMedium", 0.3, domain.BandMedium},
		{"Medium", 0.5, domain.BandMedium},
		{"UpperBoundaryIsMedium", 0.7, domain.BandMedium},
		{"High", 0.71, domain.BandHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Band(tc.probability); got != tc.want {
				t.Errorf("Band(%v) = %q, want %q", tc.probability, got, tc.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Run("MixedBatch", func(t *testing.T) {
		probs := []float64{0.15, 0.85, 0.35, 0.92, 0.08}
		predictions := make([]domain.Prediction, len(probs))
		for i, p := range probs {
			fraud, class := Classify(p)
			predictions[i] = domain.Prediction{
				FraudProbability: p,
				PredictedFraud:   fraud,
				Classification:   class,
			}
		}

		summary := Summarize(predictions)

		if summary.Total != 5 {
			t.Errorf("Total = %d, want 5", summary.Total)
		}
		if summary.PredictedFrauds != 2 {
			t.Errorf("PredictedFrauds = %d, want 2", summary.PredictedFrauds)
		}
		if summary.LegitCount != 3 {
			t.Errorf("LegitCount = %d, want 3", summary.LegitCount)
		}
		if summary.PredictedFrauds+summary.LegitCount != summary.Total {
			t.Error("Counts do not add up to Total")
		}
		if math.Abs(summary.AvgProb-0.47) > 1e-9 {
			t.Errorf("AvgProb = %v, want 0.47", summary.AvgProb)
		}
	})

	t.Run("AllLegitimate", func(t *testing.T) {
		summary := Summarize([]domain.Prediction{
			{FraudProbability: 0.1, PredictedFraud: 0},
			{FraudProbability: 0.2, PredictedFraud: 0},
		})
		if summary.PredictedFrauds != 0 || summary.LegitCount != 2 {
			t.Errorf("Summary = %+v", summary)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		summary := Summarize(nil)
		if summary.Total != 0 || summary.AvgProb != 0 {
			t.Errorf("Empty summary = %+v", summary)
		}
	})
}
