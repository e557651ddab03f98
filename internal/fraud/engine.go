// Package fraud provides the CEL-Go based fraud signal engine.
package fraud

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-health/heron/internal/domain"
)

// Engine evaluates fraud signal rules against a claim's FraudSignals
// activation. Rules are boolean CEL expressions; a firing rule
// contributes its weight to the score and its flag to the flag list.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int

	reviewScore float64
	reviewFlags int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FraudRuleConfig
	Program cel.Program
}

// NewEngine creates a fraud signal engine. A claim is recommended for
// manual review when its score reaches reviewScore or it collects
// reviewFlags distinct signals.
func NewEngine(maxWorkers int, reviewScore float64, reviewFlags int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if reviewScore <= 0 {
		reviewScore = 0.35
	}
	if reviewFlags <= 0 {
		reviewFlags = 3
	}

	// CEL environment over the fraud activation
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("per_claim_limit", cel.DoubleType),
		cel.Variable("annual_limit", cel.DoubleType),
		cel.Variable("utilization", cel.DoubleType),
		cel.Variable("ytd_total", cel.DoubleType),
		cel.Variable("same_day_count", cel.IntType),
		cel.Variable("window_count", cel.IntType),
		cel.Variable("medicine_count", cel.IntType),
		cel.Variable("round_amount_count", cel.IntType),
		cel.Variable("has_valid_registration", cel.BoolType),
		cel.Variable("dates_consistent", cel.BoolType),
		cel.Variable("duplicate_match", cel.BoolType),
		cel.Variable("weekend_nonemergency", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
		reviewScore:   reviewScore,
		reviewFlags:   reviewFlags,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.FraudRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.FraudRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Assess evaluates all loaded rules in parallel and aggregates the
// fired signals. The score is the weight sum capped at 1.0; flags are
// deduplicated and sorted. Fraud alone never rejects.
func (e *Engine) Assess(ctx context.Context, signals *domain.FraudSignals) domain.FraudAssessment {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	assessment := domain.FraudAssessment{RulesEvaluated: len(rules)}
	if len(rules) == 0 {
		return assessment
	}

	activation := map[string]any{
		"amount":                 signals.Amount,
		"per_claim_limit":        signals.PerClaimLimit,
		"annual_limit":           signals.AnnualLimit,
		"utilization":            signals.Utilization,
		"ytd_total":              signals.YTDTotal,
		"same_day_count":         signals.SameDayCount,
		"window_count":           signals.WindowCount,
		"medicine_count":         signals.MedicineCount,
		"round_amount_count":     signals.RoundAmountCount,
		"has_valid_registration": signals.HasValidRegistration,
		"dates_consistent":       signals.DatesConsistent,
		"duplicate_match":        signals.DuplicateMatch,
		"weekend_nonemergency":   signals.WeekendNonEmergency,
	}

	// Parallel evaluation using worker pool pattern
	fired := make([]bool, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			fired[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	seen := make(map[string]bool)
	for i, rule := range rules {
		if !fired[i] {
			continue
		}
		assessment.Score += rule.Config.Weight
		if !seen[rule.Config.Flag] {
			seen[rule.Config.Flag] = true
			assessment.Flags = append(assessment.Flags, rule.Config.Flag)
		}
	}

	if assessment.Score > 1.0 {
		assessment.Score = 1.0
	}
	sort.Strings(assessment.Flags)

	assessment.RecommendReview = assessment.Score >= e.reviewScore ||
		len(assessment.Flags) >= e.reviewFlags
	return assessment
}

// evaluateRule runs a single rule. Evaluation errors count as not fired.
func evaluateRule(rule *CompiledRule, activation map[string]any) bool {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return false
	}
	return toBool(out)
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.FraudRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.FraudRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FraudRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
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

func (e *Engine) compileRule(cfg *domain.FraudRuleConfig) (*CompiledRule, error) {
	if cfg.Flag == "" {
		return nil, fmt.Errorf("rule %s: flag is required", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
