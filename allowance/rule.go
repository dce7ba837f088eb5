/*
rule.go - The rule contract

PURPOSE:
  Defines what a rule is (Rule), what it may decide (Outcome), and where
  country parameters come from (RuleRepository).

OUTCOMES:
  applied   - Value adjusted; the chain continues with the new value
  unchanged - Rule did not fire
  denied    - Allowance forfeited; the Calculator stops the chain

SEE ALSO:
  - rules.go: Built-in rule variants
  - calculator.go: Runs rules in order
*/
package allowance

import "context"

// =============================================================================
// RULE - One unit of allowance logic
// =============================================================================

// Rule inspects a trip and decides what happens to the current allowance.
//
// Apply receives the value as it stands after every earlier rule in the
// chain and returns an Outcome. A non-nil error means the rule could not be
// evaluated (for example a failed repository lookup); the Outcome is then
// ignored.
//
// New country rules are added by implementing Rule; the Calculator never
// needs to change.
type Rule interface {
	Name() string
	Apply(ctx context.Context, current Allowance, trip TripContext) (Outcome, error)
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, current Allowance, trip TripContext) (Outcome, error)
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Apply(ctx context.Context, current Allowance, trip TripContext) (Outcome, error) {
	return f.Fn(ctx, current, trip)
}

// =============================================================================
// OUTCOME - Result of applying a rule
// =============================================================================

type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"   // Value adjusted
	OutcomeUnchanged OutcomeKind = "unchanged" // Rule did not fire
	OutcomeDenied    OutcomeKind = "denied"    // Entire allowance forfeited
)

// Outcome is what a rule decided. Value is meaningful for Applied and
// Unchanged; Reason is set for Denied.
type Outcome struct {
	Kind   OutcomeKind
	Value  Allowance
	Reason string
}

func Applied(value Allowance) Outcome { return Outcome{Kind: OutcomeApplied, Value: value} }
func Unchanged(value Allowance) Outcome { return Outcome{Kind: OutcomeUnchanged, Value: value} }
func Denied(reason string) Outcome { return Outcome{Kind: OutcomeDenied, Reason: reason} }
func (o Outcome) IsDenied() bool { return o.Kind == OutcomeDenied }

// =============================================================================
// RULE REPOSITORY - External source of country parameters
// =============================================================================

// RuleRepository maps a country code to its RuleDefinition. Implementations
// return an error wrapping ErrRuleNotFound for unknown countries.
type RuleRepository interface {
	RuleForCountry(ctx context.Context, country string) (RuleDefinition, error)
}
