// Package schema validates uploaded batches against the required
// subscriber column set and decodes rows into typed records.
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/opensource-telco/shrike/internal/domain"
)

// Date layouts accepted for registration_date, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Validate checks a batch for the required columns and at least one
// data row. Missing columns and empty batches are batch-fatal; extra
// columns are allowed. Returns *domain.SchemaError on failure.
func Validate(batch *domain.Batch) error {
	if batch == nil || len(batch.Header) == 0 {
		return &domain.SchemaError{Reason: "batch has no header row"}
	}

	have := make(map[string]bool, len(batch.Header))
	for _, col := range batch.Header {
		have[strings.TrimSpace(col)] = true
	}

	var missing []string
	for _, col := range domain.RequiredColumns() {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{MissingColumns: missing}
	}

	if len(batch.Rows) == 0 {
		return &domain.SchemaError{Reason: "batch has no data rows"}
	}

	return nil
}

// Decode validates a batch and converts each row into a Record.
// Cell-level problems (short rows, unparseable numbers or dates) are
// never fatal: the affected field is left nil for the transformer to
// impute, because a single malformed cell must not abort the batch.
func Decode(batch *domain.Batch) ([]domain.Record, error) {
	if err := Validate(batch); err != nil {
		return nil, err
	}

	header := make([]string, len(batch.Header))
	for i, col := range batch.Header {
		header[i] = strings.TrimSpace(col)
	}

	records := make([]domain.Record, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		cells := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				cells[col] = strings.TrimSpace(row[i])
			}
		}

		rec := domain.Record{
			SubscriberID:      cells[domain.ColSubscriberID],
			IMEI:              cells[domain.ColIMEI],
			Location:          cells[domain.ColLocation],
			RegistrationDate:  parseDate(cells[domain.ColRegistrationDate]),
			InitialCallCount:  parseFloat(cells[domain.ColInitialCallCount]),
			AvgCallDuration:   parseFloat(cells[domain.ColAvgCallDuration]),
			DeviceSwitchCount: parseFloat(cells[domain.ColDeviceSwitchCount]),
			Fields:            cells,
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseFloat returns nil for empty or non-numeric cells so the
// transformer can impute the fit-time mean.
func parseFloat(cell string) *float64 {
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseDate returns nil when no layout matches; the transformer falls
// back to the reference date.
func parseDate(cell string) *time.Time {
	if cell == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return &t
		}
	}
	return nil
}
