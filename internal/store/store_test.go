package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-telco/shrike/internal/domain"
)

func newTestStore(t *testing.T) domain.ResultStore {
	t.Helper()
	s, err := New(domain.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string) *domain.Result {
	return &domain.Result{
		ID: id,
		Summary: domain.BatchSummary{
			Total:           2,
			PredictedFrauds: 1,
			LegitCount:      1,
			AvgProb:         0.55,
		},
		Predictions: []domain.Prediction{
			{
				SubscriberID:     "sub-001",
				FraudProbability: 0.91,
				PredictedFraud:   1,
				Classification:   domain.ClassFraud,
				Fields:           map[string]string{"subscriber_id": "sub-001", "location": "border-zone"},
			},
			{
				SubscriberID:     "sub-002",
				FraudProbability: 0.19,
				PredictedFraud:   0,
				Classification:   domain.ClassLegitimate,
				Fields:           map[string]string{"subscriber_id": "sub-002", "location": "urban"},
			},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saved := sampleResult("res-001")
	if err := s.SaveResult(ctx, saved); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	got, err := s.GetResult(ctx, "res-001")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}

	if got.Summary != saved.Summary {
		t.Errorf("Summary = %+v, want %+v", got.Summary, saved.Summary)
	}
	if len(got.Predictions) != 2 {
		t.Fatalf("Expected 2 predictions, got %d", len(got.Predictions))
	}
	for i, p := range got.Predictions {
		want := saved.Predictions[i]
		if p.SubscriberID != want.SubscriberID {
			t.Errorf("Prediction %d: subscriber %q, want %q (row order lost)", i, p.SubscriberID, want.SubscriberID)
		}
		if p.FraudProbability != want.FraudProbability {
			t.Errorf("Prediction %d: probability %v, want %v", i, p.FraudProbability, want.FraudProbability)
		}
		if p.Classification != want.Classification {
			t.Errorf("Prediction %d: classification %q, want %q", i, p.Classification, want.Classification)
		}
		if p.Fields["location"] != want.Fields["location"] {
			t.Errorf("Prediction %d: fields not preserved: %v", i, p.Fields)
		}
	}
}

func TestGetResultNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetResult(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveResultRequiresID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveResult(context.Background(), &domain.Result{}); err == nil {
		t.Fatal("Expected error saving result without id")
	}
	if err := s.SaveResult(context.Background(), nil); err == nil {
		t.Fatal("Expected error saving nil result")
	}
}

func TestListResultsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"res-old", "res-mid", "res-new"} {
		r := sampleResult(id)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveResult(ctx, r); err != nil {
			t.Fatalf("SaveResult(%s) failed: %v", id, err)
		}
	}

	summaries, err := s.ListResults(ctx)
	if err != nil {
		t.Fatalf("ListResults failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("Expected 3 summaries, got %d", len(summaries))
	}
	wantOrder := []string{"res-new", "res-mid", "res-old"}
	for i, rs := range summaries {
		if rs.ID != wantOrder[i] {
			t.Errorf("Position %d: got %s, want %s", i, rs.ID, wantOrder[i])
		}
		if rs.Summary.Total != 2 {
			t.Errorf("Summary not carried in listing: %+v", rs.Summary)
		}
	}
}

func TestPurgeResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveResult(ctx, sampleResult("res-001")); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	if err := s.PurgeResult(ctx, "res-001"); err != nil {
		t.Fatalf("PurgeResult failed: %v", err)
	}

	if _, err := s.GetResult(ctx, "res-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after purge, got %v", err)
	}

	if err := s.PurgeResult(ctx, "res-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound purging twice, got %v", err)
	}
}

func TestReviewRuleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule := &domain.ReviewRule{
		ID:          "rule-001",
		Name:        "high probability",
		Description: "flag near-certain fraud",
		Expression:  "probability > 0.9",
		Enabled:     true,
	}

	t.Run("Save", func(t *testing.T) {
		if err := s.SaveReviewRule(ctx, rule); err != nil {
			t.Fatalf("SaveReviewRule failed: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		rules, err := s.ListReviewRules(ctx)
		if err != nil {
			t.Fatalf("ListReviewRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("Expected 1 rule, got %d", len(rules))
		}
		got := rules[0]
		if got.Expression != rule.Expression || got.Name != rule.Name || !got.Enabled {
			t.Errorf("Rule = %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Error("CreatedAt not defaulted on save")
		}
	})

	t.Run("UpsertReplacesFields", func(t *testing.T) {
		updated := *rule
		updated.Name = "very high probability"
		updated.Expression = "probability > 0.95"
		if err := s.SaveReviewRule(ctx, &updated); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		rules, err := s.ListReviewRules(ctx)
		if err != nil {
			t.Fatalf("ListReviewRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("Upsert must not duplicate, got %d rules", len(rules))
		}
		if rules[0].Expression != "probability > 0.95" {
			t.Errorf("Expression not updated: %q", rules[0].Expression)
		}
	})

	t.Run("DisabledRulesStayListed", func(t *testing.T) {
		disabled := &domain.ReviewRule{
			ID:         "rule-002",
			Name:       "disabled rule",
			Expression: "probability > 0.5",
			Enabled:    false,
		}
		if err := s.SaveReviewRule(ctx, disabled); err != nil {
			t.Fatalf("SaveReviewRule failed: %v", err)
		}
		rules, err := s.ListReviewRules(ctx)
		if err != nil {
			t.Fatalf("ListReviewRules failed: %v", err)
		}
		found := false
		for _, r := range rules {
			if r.ID == "rule-002" {
				found = true
				if r.Enabled {
					t.Error("Disabled rule listed as enabled")
				}
			}
		}
		if !found {
			t.Error("Disabled rule missing from listing; it could never be re-enabled")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := s.DeleteReviewRule(ctx, "rule-001"); err != nil {
			t.Fatalf("DeleteReviewRule failed: %v", err)
		}
		if err := s.DeleteReviewRule(ctx, "rule-001"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("RequiresID", func(t *testing.T) {
		if err := s.SaveReviewRule(ctx, &domain.ReviewRule{Name: "anonymous"}); err == nil {
			t.Fatal("Expected error saving rule without id")
		}
	})
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.StoreConfig{Driver: "mysql"}); err == nil {
		t.Fatal("Expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	t.Run("PostgresPlaceholders", func(t *testing.T) {
		s := &SQLStore{driver: "postgres"}
		got := s.rebind("SELECT * FROM results WHERE id = ? AND total > ?")
		want := "SELECT * FROM results WHERE id = $1 AND total > $2"
		if got != want {
			t.Errorf("rebind = %q, want %q", got, want)
		}
	})

	t.Run("SQLiteUntouched", func(t *testing.T) {
		s := &SQLStore{driver: "sqlite"}
		q := "SELECT * FROM results WHERE id = ?"
		if got := s.rebind(q); got != q {
			t.Errorf("rebind altered sqlite query: %q", got)
		}
	})
}
