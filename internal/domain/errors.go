package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a result or review rule does not exist.
var ErrNotFound = errors.New("record not found")

// SchemaError reports a batch that cannot be scored at all: required
// columns are missing or the batch has no data rows. Nothing is scored
// or persisted when a SchemaError is returned.
type SchemaError struct {
	MissingColumns []string
	Reason         string
}

func (e *SchemaError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("schema error: missing required columns: %s", strings.Join(e.MissingColumns, ", "))
	}
	return fmt.Sprintf("schema error: %s", e.Reason)
}

// ConfigError reports a mismatch between loaded artifacts: the fitted
// transform produces vectors of a different width than the model
// expects, or the model topology is not the one this service was built
// for. It signals a corrupted or mismatched artifact pairing and is
// fatal for the process, never for a single batch.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}
