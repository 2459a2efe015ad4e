// Package transform maps raw subscriber records to fixed-length
// feature vectors using parameters fitted once at training time.
package transform

import (
	"fmt"
	"time"

	"github.com/opensource-telco/shrike/internal/domain"
)

// Numeric feature order inside the vector. The scaled numerics come
// first, followed by the one-hot location block; both orders are
// frozen at fit time and must match the model's input layer exactly.
const (
	idxInitialCallCount = iota
	idxAvgCallDuration
	idxDeviceSwitchCount
	idxDaysSinceFirstReg
	numNumericFeatures
)

// NumericFeatureNames lists the numeric features in vector order.
func NumericFeatureNames() []string {
	return []string{
		domain.ColInitialCallCount,
		domain.ColAvgCallDuration,
		domain.ColDeviceSwitchCount,
		"days_since_first_reg",
	}
}

// Vocabulary is the fixed location vocabulary decided at fit time,
// with an explicit unknown branch: values never seen during fitting
// map to no index and therefore to an all-zero one-hot block.
type Vocabulary struct {
	terms []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from an ordered term list.
func NewVocabulary(terms []string) Vocabulary {
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	return Vocabulary{terms: terms, index: index}
}

// Index returns the one-hot position of a term. ok is false for
// unknown terms; callers must emit the zero block, never an error.
func (v Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Terms returns the vocabulary in one-hot order.
func (v Vocabulary) Terms() []string {
	return v.terms
}

// Size returns the width of the one-hot block.
func (v Vocabulary) Size() int {
	return len(v.terms)
}

// Fitted is the immutable transform state learned once from training
// data: scaler parameters per numeric feature, the location
// vocabulary, and the reference earliest registration date. It is
// shared read-only across all inference calls and never mutated.
type Fitted struct {
	// Means and Stddevs are indexed by numeric feature position.
	// Means double as imputation values for missing cells.
	Means   []float64 `json:"means"`
	Stddevs []float64 `json:"stddevs"`

	// Locations is the fit-time vocabulary in one-hot order.
	Locations []string `json:"locations"`

	// ReferenceDate is the earliest registration date seen at fit
	// time, anchoring days_since_first_reg.
	ReferenceDate time.Time `json:"referenceDate"`

	vocab Vocabulary
}

// Validate checks internal consistency of the fitted state and builds
// the vocabulary index. It must run before the transform is shared
// across goroutines; from then on the state is read-only.
func (f *Fitted) Validate() error {
	if len(f.Means) != numNumericFeatures || len(f.Stddevs) != numNumericFeatures {
		return &domain.ConfigError{Reason: fmt.Sprintf(
			"fitted transform carries %d/%d scaler entries, want %d",
			len(f.Means), len(f.Stddevs), numNumericFeatures)}
	}
	f.vocab = NewVocabulary(f.Locations)
	return nil
}

// Dim returns the feature vector length: scaled numerics plus the
// one-hot location block.
func (f *Fitted) Dim() int {
	return numNumericFeatures + len(f.Locations)
}

// Vocab returns the location vocabulary. The index is built by
// Validate; a state that skipped validation gets a fresh index per
// call rather than a write to shared memory, so concurrent Apply
// calls never race.
func (f *Fitted) Vocab() Vocabulary {
	if f.vocab.index == nil {
		return NewVocabulary(f.Locations)
	}
	return f.vocab
}

// Apply converts one record into a feature vector. It is deterministic
// and never fails: missing or malformed numerics are imputed with the
// fit-time mean, unparseable dates fall back to the reference date,
// and unseen locations produce an all-zero one-hot block.
func (f *Fitted) Apply(rec *domain.Record) []float64 {
	vec := make([]float64, f.Dim())

	vec[idxInitialCallCount] = f.scale(idxInitialCallCount, rec.InitialCallCount)
	vec[idxAvgCallDuration] = f.scale(idxAvgCallDuration, rec.AvgCallDuration)
	vec[idxDeviceSwitchCount] = f.scale(idxDeviceSwitchCount, rec.DeviceSwitchCount)

	days := f.daysSinceFirstReg(rec.RegistrationDate)
	vec[idxDaysSinceFirstReg] = f.scale(idxDaysSinceFirstReg, &days)

	if i, ok := f.Vocab().Index(rec.Location); ok {
		vec[numNumericFeatures+i] = 1
	}

	return vec
}

// scale standardizes a numeric value with fit-time parameters,
// imputing the mean when the value is missing. A fit-time stddev of 0
// yields 0 to guard against division by zero.
func (f *Fitted) scale(idx int, value *float64) float64 {
	v := f.Means[idx]
	if value != nil {
		v = *value
	}
	if f.Stddevs[idx] == 0 {
		return 0
	}
	return (v - f.Means[idx]) / f.Stddevs[idx]
}

// daysSinceFirstReg returns whole days between the registration date
// and the reference date. Negative values are allowed: the reference
// date is fixed at fit time and may postdate a record.
func (f *Fitted) daysSinceFirstReg(reg *time.Time) float64 {
	if reg == nil {
		return 0
	}
	return float64(int(reg.Sub(f.ReferenceDate).Hours() / 24))
}
