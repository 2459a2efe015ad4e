package rules

import (
	"testing"

	"github.com/opensource-telco/shrike/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ReviewRule{
		ID:         "test-rule-001",
		Name:       "Test Rule",
		Expression: "probability > 0.9",
		Enabled:    true,
	}

	err := engine.LoadRule(rule)
	if err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ReviewRule{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	err := engine.LoadRule(rule)
	if err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestValidateRuleRequiresBool(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ReviewRule{
		ID:         "numeric-rule",
		Name:       "Numeric Rule",
		Expression: "probability * 2.0",
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err == nil {
		t.Error("expected error for non-bool expression")
	}

	if engine.RulesCount() != 0 {
		t.Errorf("ValidateRule must not load rules, got %d loaded", engine.RulesCount())
	}
}

func TestEvaluateFlagsMatchingPredictions(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ReviewRule{
		ID:         "high-probability",
		Name:       "High Probability",
		Expression: "probability > 0.9",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	result := &domain.Result{
		ID: "res-001",
		Predictions: []domain.Prediction{
			{SubscriberID: "sub-001", FraudProbability: 0.95, PredictedFraud: 1, Classification: domain.ClassFraud},
			{SubscriberID: "sub-002", FraudProbability: 0.40, PredictedFraud: 0, Classification: domain.ClassLegitimate},
			{SubscriberID: "sub-003", FraudProbability: 0.92, PredictedFraud: 1, Classification: domain.ClassFraud},
		},
	}

	flags := engine.Evaluate(result)
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}

	if flags[0].SubscriberID != "sub-001" {
		t.Errorf("expected first flag for sub-001, got %s", flags[0].SubscriberID)
	}
	if flags[0].RuleID != "high-probability" {
		t.Errorf("expected rule id 'high-probability', got %s", flags[0].RuleID)
	}
	if flags[1].SubscriberID != "sub-003" {
		t.Errorf("expected second flag for sub-003, got %s", flags[1].SubscriberID)
	}
}

func TestEvaluateRowFields(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	t.Run("NumericFieldParsing", func(t *testing.T) {
		rule := &domain.ReviewRule{
			ID:         "device-churn",
			Name:       "Device Churn",
			Expression: "device_switch_count >= 5.0 && classification == 'Fraud'",
			Enabled:    true,
		}
		if err := engine.ReloadRules([]*domain.ReviewRule{rule}); err != nil {
			t.Fatalf("reload failed: %v", err)
		}

		result := &domain.Result{
			Predictions: []domain.Prediction{
				{
					SubscriberID:     "sub-010",
					FraudProbability: 0.88,
					PredictedFraud:   1,
					Classification:   domain.ClassFraud,
					Fields: map[string]string{
						domain.ColDeviceSwitchCount: "7",
					},
				},
				{
					SubscriberID:     "sub-011",
					FraudProbability: 0.88,
					PredictedFraud:   1,
					Classification:   domain.ClassFraud,
					Fields: map[string]string{
						domain.ColDeviceSwitchCount: "not-a-number",
					},
				},
			},
		}

		flags := engine.Evaluate(result)
		if len(flags) != 1 {
			t.Fatalf("expected 1 flag, got %d", len(flags))
		}
		if flags[0].SubscriberID != "sub-010" {
			t.Errorf("expected flag for sub-010, got %s", flags[0].SubscriberID)
		}
	})

	t.Run("RawRowAccess", func(t *testing.T) {
		rule := &domain.ReviewRule{
			ID:         "location-watch",
			Name:       "Location Watch",
			Expression: "row['location'] == 'border-zone'",
			Enabled:    true,
		}
		if err := engine.ReloadRules([]*domain.ReviewRule{rule}); err != nil {
			t.Fatalf("reload failed: %v", err)
		}

		result := &domain.Result{
			Predictions: []domain.Prediction{
				{
					SubscriberID: "sub-020",
					Fields:       map[string]string{domain.ColLocation: "border-zone"},
				},
				{
					SubscriberID: "sub-021",
					Fields:       map[string]string{domain.ColLocation: "downtown"},
				},
			},
		}

		flags := engine.Evaluate(result)
		if len(flags) != 1 {
			t.Fatalf("expected 1 flag, got %d", len(flags))
		}
		if flags[0].SubscriberID != "sub-020" {
			t.Errorf("expected flag for sub-020, got %s", flags[0].SubscriberID)
		}
	})

	t.Run("NilFieldsSafe", func(t *testing.T) {
		rule := &domain.ReviewRule{
			ID:         "any-fraud",
			Name:       "Any Fraud",
			Expression: "predicted_fraud == 1",
			Enabled:    true,
		}
		if err := engine.ReloadRules([]*domain.ReviewRule{rule}); err != nil {
			t.Fatalf("reload failed: %v", err)
		}

		result := &domain.Result{
			Predictions: []domain.Prediction{
				{SubscriberID: "sub-030", PredictedFraud: 1},
			},
		}

		flags := engine.Evaluate(result)
		if len(flags) != 1 {
			t.Fatalf("expected 1 flag, got %d", len(flags))
		}
	})
}

func TestLoadRulesSkipsDisabled(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rules := []*domain.ReviewRule{
		{ID: "r1", Name: "R1", Expression: "probability > 0.5", Enabled: true},
		{ID: "r2", Name: "R2", Expression: "probability > 0.8", Enabled: false},
	}

	if err := engine.LoadRules(rules); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 loaded rule, got %d", engine.RulesCount())
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.ReviewRule{
		ID: "old", Name: "Old", Expression: "probability > 0.1", Enabled: true,
	})

	err := engine.ReloadRules([]*domain.ReviewRule{
		{ID: "new1", Name: "New1", Expression: "probability > 0.5", Enabled: true},
		{ID: "new2", Name: "New2", Expression: "predicted_fraud == 1", Enabled: true},
	})
	if err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	if engine.RulesCount() != 2 {
		t.Errorf("expected 2 rules after reload, got %d", engine.RulesCount())
	}

	for _, r := range engine.GetLoadedRules() {
		if r.ID == "old" {
			t.Error("old rule should be gone after reload")
		}
	}
}

func TestUnloadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.ReviewRule{
		ID: "r1", Name: "R1", Expression: "probability > 0.5", Enabled: true,
	})

	engine.UnloadRule("r1")

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules after unload, got %d", engine.RulesCount())
	}
}

func TestEvaluateNoRules(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	result := &domain.Result{
		Predictions: []domain.Prediction{{SubscriberID: "sub-001"}},
	}

	if flags := engine.Evaluate(result); flags != nil {
		t.Errorf("expected nil flags with no rules, got %v", flags)
	}
}
