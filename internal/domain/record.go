// Package domain defines the core interfaces and types for Shrike.
package domain

import (
	"time"
)

// Required column names for an uploaded batch.
const (
	ColSubscriberID      = "subscriber_id"
	ColIMEI              = "IMEI"
	ColRegistrationDate  = "registration_date"
	ColLocation          = "location"
	ColInitialCallCount  = "initial_call_count"
	ColAvgCallDuration   = "average_call_duration"
	ColDeviceSwitchCount = "device_switch_count"
)

// RequiredColumns lists the columns every batch must carry, in
// canonical order. Extra columns are allowed and passed through.
func RequiredColumns() []string {
	return []string{
		ColSubscriberID,
		ColIMEI,
		ColRegistrationDate,
		ColLocation,
		ColInitialCallCount,
		ColAvgCallDuration,
		ColDeviceSwitchCount,
	}
}

// Batch is a parsed CSV-like upload: a header row of column names and
// data rows of raw string cells. This is the shape the upload-handling
// collaborator supplies.
type Batch struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Record is one subscriber row after schema validation. Numeric fields
// are pointers: nil means the cell was absent or unparseable and the
// transformer must impute it. Identifier fields are carried for
// reporting only and never enter the feature vector.
type Record struct {
	SubscriberID string
	IMEI         string

	// RegistrationDate is nil when the cell could not be parsed;
	// the transformer falls back to the reference date.
	RegistrationDate *time.Time

	Location string

	InitialCallCount  *float64
	AvgCallDuration   *float64
	DeviceSwitchCount *float64

	// Fields holds every original cell by column name, including
	// extra columns, for pass-through reporting.
	Fields map[string]string
}
