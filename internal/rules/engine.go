// Package rules provides the CEL-Go based review rule engine.
//
// Review rules run after scoring and flag individual predictions for
// manual review. They never change a prediction's classification.
package rules

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-telco/shrike/internal/domain"
)

// Engine compiles and evaluates review rules against scored predictions.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.ReviewRule
	Program cel.Program
}

// NewEngine creates a new review rule engine.
func NewEngine() (*Engine, error) {
	// Create CEL environment with prediction variables
	env, err := cel.NewEnv(
		cel.Variable("subscriber_id", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("predicted_fraud", cel.IntType),
		cel.Variable("classification", cel.StringType),
		cel.Variable("initial_call_count", cel.DoubleType),
		cel.Variable("average_call_duration", cel.DoubleType),
		cel.Variable("device_switch_count", cel.DoubleType),
		cel.Variable("row", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(rule *domain.ReviewRule) error {
	if rule == nil {
		return fmt.Errorf("review rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.ReviewRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(rules []*domain.ReviewRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// UnloadRule removes a rule from the engine.
func (e *Engine) UnloadRule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.compiledRules, id)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the store.
func (e *Engine) ReloadRules(rules []*domain.ReviewRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// Evaluate runs every loaded rule against every prediction in the result
// and returns one flag per match. Rule evaluation errors are treated as
// no-match so a bad rule cannot block a batch.
func (e *Engine) Evaluate(result *domain.Result) []domain.Flag {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 || result == nil {
		return nil
	}

	var flags []domain.Flag
	for i := range result.Predictions {
		p := &result.Predictions[i]
		activation := predictionActivation(p)

		for _, rule := range rules {
			out, _, err := rule.Program.Eval(activation)
			if err != nil {
				continue
			}
			if matched, ok := out.(types.Bool); ok && bool(matched) {
				flags = append(flags, domain.Flag{
					RuleID:           rule.Rule.ID,
					RuleName:         rule.Rule.Name,
					SubscriberID:     p.SubscriberID,
					FraudProbability: p.FraudProbability,
				})
			}
		}
	}

	return flags
}

// predictionActivation builds the CEL variable bindings for a prediction.
// Numeric fields missing from the row default to 0.
func predictionActivation(p *domain.Prediction) map[string]any {
	row := p.Fields
	if row == nil {
		row = map[string]string{}
	}

	return map[string]any{
		"subscriber_id":         p.SubscriberID,
		"location":              row[domain.ColLocation],
		"probability":           p.FraudProbability,
		"predicted_fraud":       int64(p.PredictedFraud),
		"classification":        p.Classification,
		"initial_call_count":    fieldFloat(row, domain.ColInitialCallCount),
		"average_call_duration": fieldFloat(row, domain.ColAvgCallDuration),
		"device_switch_count":   fieldFloat(row, domain.ColDeviceSwitchCount),
		"row":                   row,
	}
}

func fieldFloat(row map[string]string, col string) float64 {
	v, err := strconv.ParseFloat(row[col], 64)
	if err != nil {
		return 0
	}
	return v
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.ReviewRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ReviewRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.ReviewRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{
		Rule:    rule,
		Program: program,
	}, nil
}
