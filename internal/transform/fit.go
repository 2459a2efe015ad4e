package transform

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-telco/shrike/internal/domain"
)

// Fit learns transform state from training records: per-feature mean
// and stddev, the location vocabulary, and the earliest
// registration date. Fitting happens once, offline; the returned state
// is treated as immutable from then on.
func Fit(records []domain.Record) (*Fitted, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit transform on zero records")
	}

	ref := earliestDate(records)

	// Collect raw numeric columns. Missing cells are skipped when
	// estimating the mean, then imputed with it before estimating
	// the spread, mirroring how inference will see them.
	cols := make([][]float64, numNumericFeatures)
	for _, rec := range records {
		appendValue(&cols[idxInitialCallCount], rec.InitialCallCount)
		appendValue(&cols[idxAvgCallDuration], rec.AvgCallDuration)
		appendValue(&cols[idxDeviceSwitchCount], rec.DeviceSwitchCount)
		days := daysBetween(rec.RegistrationDate, ref)
		cols[idxDaysSinceFirstReg] = append(cols[idxDaysSinceFirstReg], days)
	}

	fitted := &Fitted{
		Means:         make([]float64, numNumericFeatures),
		Stddevs:       make([]float64, numNumericFeatures),
		Locations:     locationVocabulary(records),
		ReferenceDate: ref,
	}
	fitted.vocab = NewVocabulary(fitted.Locations)

	for i, col := range cols {
		if len(col) == 0 {
			// Entire column missing: impute 0, scale collapses to 0.
			continue
		}
		// Population stddev, so artifacts fitted elsewhere with a
		// standard scaler standardize identically here.
		fitted.Means[i] = stat.Mean(col, nil)
		std := stat.PopStdDev(col, nil)
		if math.IsNaN(std) {
			std = 0
		}
		fitted.Stddevs[i] = std
	}

	return fitted, nil
}

func appendValue(col *[]float64, v *float64) {
	if v != nil {
		*col = append(*col, *v)
	}
}

func daysBetween(reg *time.Time, ref time.Time) float64 {
	if reg == nil {
		return 0
	}
	return float64(int(reg.Sub(ref).Hours() / 24))
}

// earliestDate finds the reference registration date among records
// that carry a parseable date. Falls back to the zero time when none
// do, which only happens for degenerate training sets.
func earliestDate(records []domain.Record) time.Time {
	var earliest time.Time
	found := false
	for _, rec := range records {
		if rec.RegistrationDate == nil {
			continue
		}
		if !found || rec.RegistrationDate.Before(earliest) {
			earliest = *rec.RegistrationDate
			found = true
		}
	}
	return earliest
}

// locationVocabulary collects distinct location values in sorted order
// so the one-hot layout is reproducible across fits of the same data.
func locationVocabulary(records []domain.Record) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, rec := range records {
		if rec.Location == "" || seen[rec.Location] {
			continue
		}
		seen[rec.Location] = true
		terms = append(terms, rec.Location)
	}
	sort.Strings(terms)
	return terms
}
