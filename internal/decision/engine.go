// Package decision maps risk and segment classifications to recommended
// business actions via an ordered CEL-predicate rule table, estimates
// action ROI, and narrates each decision.
package decision

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine evaluates the ordered decision rule table. Rules are compiled once
// at construction; evaluation walks the table top-down and the first
// matching predicate wins. The explicit fallback guarantees totality: every
// (risk level, value segment) pair resolves to exactly one action.
type Engine struct {
	env      *cel.Env
	rules    []compiledRule
	fallback domain.ActionRecord
	costs    map[string]float64
	recovery map[string]float64
}

type compiledRule struct {
	cfg     domain.DecisionRule
	program cel.Program
}

// FallbackRuleID marks decisions resolved by the catch-all.
const FallbackRuleID = "fallback"

// Input is the joined per-customer record the rule table is evaluated
// against. All values are already computed upstream; the engine never
// re-derives them.
type Input struct {
	CustomerID     string
	RiskLevel      string
	RiskScore      float64
	ValueSegment   string
	LifecycleStage string
	LifetimeValue  float64
	Monetary       float64
	RecencyDays    int
	SpendTrend     float64
	FrequencyTrend float64
}

// NewEngine compiles the configured rule table.
func NewEngine(cfg domain.PipelineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("risk_score", cel.DoubleType),
		cel.Variable("value_segment", cel.StringType),
		cel.Variable("lifecycle_stage", cel.StringType),
		cel.Variable("lifetime_value", cel.DoubleType),
		cel.Variable("monetary", cel.DoubleType),
		cel.Variable("recency_days", cel.IntType),
		cel.Variable("spend_trend", cel.DoubleType),
		cel.Variable("frequency_trend", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		env: env,
		fallback: domain.ActionRecord{
			RecommendedAction: cfg.FallbackAction,
			ActionPriority:    cfg.FallbackPriority,
			RuleID:            FallbackRuleID,
		},
		costs:    cfg.ActionCosts,
		recovery: cfg.RecoveryRates,
	}

	for _, rule := range cfg.Rules {
		compiled, err := e.compileRule(rule)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiled)
	}

	return e, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule domain.DecisionRule) error {
	_, err := e.compileRule(rule)
	return err
}

// RulesCount returns the number of loaded rules, excluding the fallback.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

// Decide resolves the recommended action for one customer. The rule table
// is evaluated in declaration order; a predicate evaluation error aborts the
// decision rather than skipping the rule, since a skipped rule would change
// which action wins.
func (e *Engine) Decide(input Input) (domain.ActionRecord, error) {
	activation := map[string]any{
		"risk_level":      input.RiskLevel,
		"risk_score":      input.RiskScore,
		"value_segment":   input.ValueSegment,
		"lifecycle_stage": input.LifecycleStage,
		"lifetime_value":  input.LifetimeValue,
		"monetary":        input.Monetary,
		"recency_days":    int64(input.RecencyDays),
		"spend_trend":     input.SpendTrend,
		"frequency_trend": input.FrequencyTrend,
	}

	for _, rule := range e.rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			return domain.ActionRecord{}, fmt.Errorf("rule %s: evaluation failed for customer %s: %w",
				rule.cfg.ID, input.CustomerID, err)
		}
		matched, ok := out.(types.Bool)
		if !ok {
			return domain.ActionRecord{}, fmt.Errorf("rule %s: predicate returned %T, want bool", rule.cfg.ID, out)
		}
		if bool(matched) {
			return domain.ActionRecord{
				CustomerID:        input.CustomerID,
				RecommendedAction: rule.cfg.Action,
				ActionPriority:    rule.cfg.Priority,
				RuleID:            rule.cfg.ID,
			}, nil
		}
	}

	record := e.fallback
	record.CustomerID = input.CustomerID
	return record, nil
}

func (e *Engine) compileRule(rule domain.DecisionRule) (compiledRule, error) {
	if rule.ID == "" {
		return compiledRule{}, fmt.Errorf("%w: decision rule without ID", domain.ErrInvalidConfiguration)
	}
	if rule.Action == "" {
		return compiledRule{}, fmt.Errorf("%w: rule %s has no action", domain.ErrInvalidConfiguration, rule.ID)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return compiledRule{}, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return compiledRule{}, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return compiledRule{}, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return compiledRule{cfg: rule, program: program}, nil
}
