package schema

import (
	"testing"

	"github.com/opensource-telco/shrike/internal/domain"
)

func validHeader() []string {
	return []string{
		"subscriber_id", "IMEI", "registration_date", "location",
		"initial_call_count", "average_call_duration", "device_switch_count",
	}
}

func TestValidate(t *testing.T) {
	t.Run("ValidBatch", func(t *testing.T) {
		batch := &domain.Batch{
			Header: validHeader(),
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42", "180.5", "1"}},
		}
		if err := Validate(batch); err != nil {
			t.Fatalf("Expected valid batch, got error: %v", err)
		}
	})

	t.Run("MissingColumnsListed", func(t *testing.T) {
		batch := &domain.Batch{
			Header: []string{"subscriber_id", "IMEI", "registration_date", "location", "initial_call_count"},
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42"}},
		}
		err := Validate(batch)
		if err == nil {
			t.Fatal("Expected error for missing columns")
		}
		schemaErr, ok := err.(*domain.SchemaError)
		if !ok {
			t.Fatalf("Expected *domain.SchemaError, got %T", err)
		}
		if len(schemaErr.MissingColumns) != 2 {
			t.Fatalf("Expected 2 missing columns, got %v", schemaErr.MissingColumns)
		}
		want := map[string]bool{"average_call_duration": true, "device_switch_count": true}
		for _, col := range schemaErr.MissingColumns {
			if !want[col] {
				t.Errorf("Unexpected missing column %q", col)
			}
		}
	})

	t.Run("EmptyBatchRejected", func(t *testing.T) {
		batch := &domain.Batch{Header: validHeader()}
		err := Validate(batch)
		if err == nil {
			t.Fatal("Expected error for batch with no rows")
		}
		if _, ok := err.(*domain.SchemaError); !ok {
			t.Fatalf("Expected *domain.SchemaError, got %T", err)
		}
	})

	t.Run("NoHeaderRejected", func(t *testing.T) {
		if err := Validate(&domain.Batch{}); err == nil {
			t.Fatal("Expected error for batch with no header")
		}
		if err := Validate(nil); err == nil {
			t.Fatal("Expected error for nil batch")
		}
	})

	t.Run("ExtraColumnsAllowed", func(t *testing.T) {
		header := append(validHeader(), "contract_type", "notes")
		batch := &domain.Batch{
			Header: header,
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42", "180.5", "1", "prepaid", "vip"}},
		}
		if err := Validate(batch); err != nil {
			t.Fatalf("Extra columns must be allowed, got: %v", err)
		}
	})

	t.Run("WhitespaceInHeaderTolerated", func(t *testing.T) {
		batch := &domain.Batch{
			Header: []string{
				" subscriber_id", "IMEI ", "registration_date", "location",
				"initial_call_count", "average_call_duration", "device_switch_count",
			},
			Rows: [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42", "180.5", "1"}},
		}
		if err := Validate(batch); err != nil {
			t.Fatalf("Padded column names must validate, got: %v", err)
		}
	})
}

func TestDecode(t *testing.T) {
	t.Run("TypedFields", func(t *testing.T) {
		batch := &domain.Batch{
			Header: validHeader(),
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42", "180.5", "1"}},
		}
		records, err := Decode(batch)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}

		rec := records[0]
		if rec.SubscriberID != "sub-001" {
			t.Errorf("SubscriberID = %q", rec.SubscriberID)
		}
		if rec.IMEI != "356938035643809" {
			t.Errorf("IMEI = %q", rec.IMEI)
		}
		if rec.Location != "urban" {
			t.Errorf("Location = %q", rec.Location)
		}
		if rec.InitialCallCount == nil || *rec.InitialCallCount != 42 {
			t.Errorf("InitialCallCount = %v", rec.InitialCallCount)
		}
		if rec.AvgCallDuration == nil || *rec.AvgCallDuration != 180.5 {
			t.Errorf("AvgCallDuration = %v", rec.AvgCallDuration)
		}
		if rec.DeviceSwitchCount == nil || *rec.DeviceSwitchCount != 1 {
			t.Errorf("DeviceSwitchCount = %v", rec.DeviceSwitchCount)
		}
		if rec.RegistrationDate == nil {
			t.Fatal("RegistrationDate is nil")
		}
		if got := rec.RegistrationDate.Format("2006-01-02"); got != "2023-06-15" {
			t.Errorf("RegistrationDate = %s", got)
		}
	})

	t.Run("MalformedCellsAreNotFatal", func(t *testing.T) {
		batch := &domain.Batch{
			Header: validHeader(),
			Rows: [][]string{
				{"sub-001", "356938035643809", "not-a-date", "urban", "abc", "", "xyz"},
			},
		}
		records, err := Decode(batch)
		if err != nil {
			t.Fatalf("Malformed cells must not abort the batch: %v", err)
		}

		rec := records[0]
		if rec.RegistrationDate != nil {
			t.Error("Expected nil RegistrationDate for unparseable date")
		}
		if rec.InitialCallCount != nil {
			t.Error("Expected nil InitialCallCount for non-numeric cell")
		}
		if rec.AvgCallDuration != nil {
			t.Error("Expected nil AvgCallDuration for empty cell")
		}
		if rec.DeviceSwitchCount != nil {
			t.Error("Expected nil DeviceSwitchCount for non-numeric cell")
		}
	})

	t.Run("ShortRowLeavesFieldsNil", func(t *testing.T) {
		batch := &domain.Batch{
			Header: validHeader(),
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15"}},
		}
		records, err := Decode(batch)
		if err != nil {
			t.Fatalf("Short rows must not abort the batch: %v", err)
		}
		rec := records[0]
		if rec.Location != "" {
			t.Errorf("Expected empty location, got %q", rec.Location)
		}
		if rec.InitialCallCount != nil || rec.AvgCallDuration != nil || rec.DeviceSwitchCount != nil {
			t.Error("Expected nil numerics for truncated row")
		}
	})

	t.Run("FieldsCarryEveryCell", func(t *testing.T) {
		header := append(validHeader(), "contract_type")
		batch := &domain.Batch{
			Header: header,
			Rows:   [][]string{{"sub-001", "356938035643809", "2023-06-15", "urban", "42", "180.5", "1", "prepaid"}},
		}
		records, err := Decode(batch)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got := records[0].Fields["contract_type"]; got != "prepaid" {
			t.Errorf("Extra column not passed through: %q", got)
		}
		if got := records[0].Fields["subscriber_id"]; got != "sub-001" {
			t.Errorf("Required column missing from Fields: %q", got)
		}
	})

	t.Run("DateLayouts", func(t *testing.T) {
		cases := map[string]string{
			"ISODate":     "2023-06-15",
			"ISODateTime": "2023-06-15 10:30:00",
			"RFC3339":     "2023-06-15T10:30:00Z",
			"USSlash":     "06/15/2023",
		}
		for name, cell := range cases {
			t.Run(name, func(t *testing.T) {
				batch := &domain.Batch{
					Header: validHeader(),
					Rows:   [][]string{{"sub-001", "356938035643809", cell, "urban", "1", "1", "1"}},
				}
				records, err := Decode(batch)
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				rec := records[0]
				if rec.RegistrationDate == nil {
					t.Fatalf("Layout %q not accepted", cell)
				}
				if got := rec.RegistrationDate.Format("2006-01-02"); got != "2023-06-15" {
					t.Errorf("Parsed %q as %s", cell, got)
				}
			})
		}
	})

	t.Run("InvalidBatchRejected", func(t *testing.T) {
		batch := &domain.Batch{Header: []string{"subscriber_id"}}
		if _, err := Decode(batch); err == nil {
			t.Fatal("Expected validation error from Decode")
		}
	})
}
