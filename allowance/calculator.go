/*
calculator.go - Orchestrates a rule chain over one trip

PURPOSE:
  Holds one Allowance, one TripContext and an ordered list of rules, and
  feeds the value through the rules in registration order. Later rules see
  the effect of earlier ones, so order matters:

    ES reduction then PL factor, 8 days, base 100:  (100-50-25)*2 = 50
    PL factor then ES reduction, 8 days, base 100:  100*2-50-25   = 125

SHORT-CIRCUIT:
  A Denied outcome stops the chain and Compute returns a *DeniedError.
  A rule error (e.g. RuleNotFoundError) stops the chain and is returned
  wrapped with the rule name. In both cases the allowance keeps the value
  it had before the stopping rule ran.

CONCURRENCY:
  A Calculator is not safe for concurrent use. Build one per computation.
*/
package allowance

import (
	"context"
	"fmt"
	"log/slog"
)

// Step records what one rule did during Compute.
type Step struct {
	Rule   string
	Kind   OutcomeKind
	Before Allowance
	After  Allowance
	Reason string
}

// Calculator applies rules to an allowance in registration order.
type Calculator struct {
	allowance Allowance
	trip      TripContext
	rules     []Rule
	steps     []Step
	logger    *slog.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger makes the calculator log each rule at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCalculator creates a calculator with no rules registered.
func NewCalculator(initial Allowance, trip TripContext, opts ...Option) *Calculator {
	c := &Calculator{
		allowance: initial,
		trip:      trip,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddRule appends a rule. No deduplication, no reordering.
func (c *Calculator) AddRule(rule Rule) {
	c.rules = append(c.rules, rule)
}

// Rules returns a copy of the registered rules.
func (c *Calculator) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Allowance returns the current value.
func (c *Calculator) Allowance() Allowance {
	return c.allowance
}

// Trip returns the trip the calculator was built for.
func (c *Calculator) Trip() TripContext {
	return c.trip
}

// Steps returns the trace of the last Compute call.
func (c *Calculator) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Compute runs every rule in order against the current value. Calling it
// again reapplies the chain to the value left by the previous run.
func (c *Calculator) Compute(ctx context.Context) error {
	c.steps = c.steps[:0]

	for _, rule := range c.rules {
		if err := ctx.Err(); err != nil {
			return err
		}

		before := c.allowance
		outcome, err := rule.Apply(ctx, before, c.trip)
		if err != nil {
			c.logger.DebugContext(ctx, "rule failed",
				slog.String("rule", rule.Name()),
				slog.String("country", c.trip.Country()),
				slog.Any("error", err))
			return fmt.Errorf("rule %s: %w", rule.Name(), err)
		}

		step := Step{Rule: rule.Name(), Kind: outcome.Kind, Before: before, After: before, Reason: outcome.Reason}

		switch outcome.Kind {
		case OutcomeDenied:
			c.steps = append(c.steps, step)
			c.logger.DebugContext(ctx, "allowance denied",
				slog.String("rule", rule.Name()),
				slog.String("reason", outcome.Reason))
			return &DeniedError{Rule: rule.Name(), Reason: outcome.Reason}
		case OutcomeApplied, OutcomeUnchanged:
			c.allowance = outcome.Value
			step.After = outcome.Value
		default:
			return fmt.Errorf("rule %s: unexpected outcome %q", rule.Name(), outcome.Kind)
		}

		c.steps = append(c.steps, step)
		c.logger.DebugContext(ctx, "rule applied",
			slog.String("rule", rule.Name()),
			slog.String("outcome", string(outcome.Kind)),
			slog.String("before", before.String()),
			slog.String("after", c.allowance.String()))
	}

	return nil
}
